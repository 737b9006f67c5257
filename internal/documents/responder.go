// Package documents owns document metadata and bytes. On the source side it
// exports a citizen's documents as presigned links; on the destination side
// it re-materializes documents fetched from the sending operator.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josuedanielbust/docucol/internal/documents/models"
	"github.com/josuedanielbust/docucol/internal/documents/storage"
	"github.com/josuedanielbust/docucol/internal/documents/store"
	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	transfer "github.com/josuedanielbust/docucol/internal/transfer/models"
)

// Publisher is the outbound message port.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Certifier registers an exported document with the government directory so
// the receiving operator can verify its provenance.
type Certifier interface {
	AuthenticateDocument(ctx context.Context, userID, documentURL, title string) error
}

// Responder consumes the document-facing saga topics.
type Responder struct {
	store      store.Store
	objects    storage.ObjectStore
	publisher  Publisher
	certifier  Certifier
	fetch      *http.Client
	presignTTL time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewResponder builds the responder. certifier may be nil, in which case
// exported documents are not registered with the directory.
func NewResponder(
	s store.Store,
	objects storage.ObjectStore,
	publisher Publisher,
	certifier Certifier,
	fetchTimeout, presignTTL time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Responder {
	return &Responder{
		store:      s,
		objects:    objects,
		publisher:  publisher,
		certifier:  certifier,
		fetch:      &http.Client{Timeout: fetchTimeout},
		presignTTL: presignTTL,
		metrics:    m,
		logger:     logger.With(slog.String("component", "documents_responder")),
	}
}

// Register wires the responder's topics into the consumer router.
func (r *Responder) Register(router *consumer.Router) {
	router.Register(transfer.TopicTransferUserResponse, consumer.HandlerFunc(r.handleTransferUserResponse))
	router.Register(transfer.TopicIncomingUserResponse, consumer.HandlerFunc(r.handleIncomingUserResponse))
	router.Register(transfer.TopicIncomingConfirmationInitiate, consumer.HandlerFunc(r.handleConfirmation))
}

// handleTransferUserResponse exports the departing citizen's documents as
// presigned links. A document whose link cannot be minted is skipped and
// logged; the transfer ships the rest.
func (r *Responder) handleTransferUserResponse(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.UserResponse](msg.Value)
	if err != nil {
		return err
	}
	if !req.Success {
		return nil
	}

	docs, err := r.store.ListByUser(ctx, req.User.ID)
	if err != nil {
		return fmt.Errorf("list documents for %s: %w", req.User.ID, err)
	}

	links := make([]transfer.DocumentLink, 0, len(docs))
	for _, doc := range docs {
		link, err := r.objects.PresignDownload(ctx, doc.Key, r.presignTTL)
		if err != nil {
			r.logger.WarnContext(ctx, "skipping document without a download link",
				slog.String("transfer_id", req.TransferID),
				slog.String("document_id", doc.ID),
				slog.Any("error", err))
			continue
		}
		if r.certifier != nil {
			// Certification is advisory; a directory hiccup must not hold
			// the transfer hostage.
			if err := r.certifier.AuthenticateDocument(ctx, req.User.ID, link, doc.Title); err != nil {
				r.logger.WarnContext(ctx, "document certification failed",
					slog.String("transfer_id", req.TransferID),
					slog.String("document_id", doc.ID),
					slog.Any("error", err))
			}
		}
		links = append(links, transfer.DocumentLink{ID: doc.ID, Title: doc.Title, PresignedURL: link})
	}

	return r.publisher.Publish(ctx, transfer.TopicTransferDocumentsResponse, req.TransferID, transfer.DocumentsResponse{
		Success:    true,
		Message:    "documents exported",
		TransferID: req.TransferID,
		OperatorID: req.OperatorID,
		Status:     "pending_confirmation",
		User:       req.User,
		Documents:  links,
	})
}

// handleIncomingUserResponse materializes the arriving citizen's documents.
// Each URL is fetched and re-uploaded independently; a failed item is logged
// and counted but never aborts the rest of the batch or the saga.
func (r *Responder) handleIncomingUserResponse(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.IncomingUserResponse](msg.Value)
	if err != nil {
		return err
	}

	var failed int
	for title, urls := range req.Payload.URLDocuments {
		for _, sourceURL := range urls {
			if err := r.materialize(ctx, req.Payload.ID, title, sourceURL); err != nil {
				failed++
				r.metrics.DocumentsFailed.Inc()
				r.logger.ErrorContext(ctx, "document materialization failed",
					slog.String("transfer_id", req.TransferID),
					slog.String("title", title),
					slog.String("url", sourceURL),
					slog.Any("error", err))
				continue
			}
			r.metrics.DocumentsMaterialized.Inc()
		}
	}
	if failed > 0 {
		r.logger.WarnContext(ctx, "inbound transfer completed with missing documents",
			slog.String("transfer_id", req.TransferID), slog.Int("failed", failed))
	}
	return nil
}

func (r *Responder) materialize(ctx context.Context, userID, title, sourceURL string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := r.fetch.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch document: status %d", resp.StatusCode)
	}

	key := uuid.NewString()
	contentType := resp.Header.Get("Content-Type")
	size, err := r.objects.Put(ctx, key, contentType, resp.Body)
	if err != nil {
		return fmt.Errorf("store document bytes: %w", err)
	}

	return r.store.Create(ctx, &models.Document{
		ID:          key,
		UserID:      userID,
		Title:       title,
		Key:         key,
		ContentType: contentType,
		Size:        size,
	})
}

// handleConfirmation compensates a rejected inbound transfer: every document
// materialized for the citizen is removed, bytes first, then metadata.
func (r *Responder) handleConfirmation(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.ConfirmationInitiate](msg.Value)
	if err != nil {
		return err
	}
	if req.Payload.ReqStatus != "rejected" {
		return nil
	}

	removed, err := r.store.DeleteByUser(ctx, req.Payload.ID)
	if err != nil {
		return fmt.Errorf("purge documents for %s: %w", req.Payload.ID, err)
	}
	for _, doc := range removed {
		if err := r.objects.Delete(ctx, doc.Key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			r.logger.WarnContext(ctx, "orphaned object after rejection purge",
				slog.String("key", doc.Key), slog.Any("error", err))
		}
	}
	if len(removed) > 0 {
		r.logger.InfoContext(ctx, "documents purged after rejection",
			slog.String("transfer_id", req.TransferID),
			slog.String("user_id", req.Payload.ID),
			slog.Int("count", len(removed)))
	}
	return nil
}
