package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
	"github.com/josuedanielbust/docucol/internal/transfer/store/session"
	domainerrors "github.com/josuedanielbust/docucol/pkg/domain-errors"
)

// InitiateResult is the immediate answer for an accepted transfer request.
// The saga completes asynchronously; the caller polls the session for the
// terminal state.
type InitiateResult struct {
	TransferID string `json:"transferId"`
	Status     string `json:"status"`
}

// Service drives the outbound saga. Every consumed message is checked
// against the persisted session state before it has any effect, so
// duplicates and out-of-order deliveries degrade to logged no-ops.
type Service struct {
	sessions     SessionStore
	publisher    Publisher
	directory    Directory
	gateway      OperatorGateway
	validateUser bool
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewService(
	sessions SessionStore,
	publisher Publisher,
	dir Directory,
	gateway OperatorGateway,
	validateUser bool,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions:     sessions,
		publisher:    publisher,
		directory:    dir,
		gateway:      gateway,
		validateUser: validateUser,
		metrics:      m,
		logger:       logger.With(slog.String("component", "outbound_saga")),
	}
}

// Register wires the saga's consumed topics into the consumer router.
func (s *Service) Register(router *consumer.Router) {
	router.Register(models.TopicTransferUserResponse, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		req, err := models.Decode[models.UserResponse](msg.Value)
		if err != nil {
			return err
		}
		return s.HandleUserResponse(ctx, req)
	}))
	router.Register(models.TopicTransferDocumentsResponse, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		req, err := models.Decode[models.DocumentsResponse](msg.Value)
		if err != nil {
			return err
		}
		return s.HandleDocumentsResponse(ctx, req)
	}))
	router.Register(models.TopicTransferError, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		req, err := models.Decode[models.ErrorMessage](msg.Value)
		if err != nil {
			return err
		}
		return s.HandleError(ctx, req)
	}))
}

// Initiate starts an outbound transfer and returns as soon as the saga is
// underway. With validation enabled, a citizen the directory does not know
// is rejected before anything is persisted.
func (s *Service) Initiate(ctx context.Context, userID, operatorID string) (*InitiateResult, error) {
	if userID == "" || operatorID == "" {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "userId and operatorId are required")
	}

	if s.validateUser {
		registered, _, err := s.directory.ValidateUser(ctx, userID)
		if err != nil {
			return nil, domainerrors.New(domainerrors.CodeUnavailable, "government directory unavailable")
		}
		if !registered {
			return nil, domainerrors.New(domainerrors.CodeBadRequest, "citizen is not registered with any operator")
		}
	}

	sess := &models.OutboundSession{
		TransferID: uuid.NewString(),
		UserID:     userID,
		OperatorID: operatorID,
		State:      state.Initiated,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create transfer session: %w", err)
	}

	if err := s.publisher.Publish(ctx, models.TopicTransferInitiate, sess.TransferID, models.InitiateTransfer{
		TransferID: sess.TransferID,
		UserID:     userID,
		OperatorID: operatorID,
	}); err != nil {
		sess.State = state.Failed
		sess.LastError = err.Error()
		if updateErr := s.sessions.Update(ctx, sess, state.Initiated); updateErr != nil {
			s.logger.ErrorContext(ctx, "failed to mark unpublished transfer as failed",
				slog.String("transfer_id", sess.TransferID), slog.Any("error", updateErr))
		}
		return nil, fmt.Errorf("publish transfer initiate: %w", err)
	}

	sess.State = state.PendingUserDetails
	if err := s.sessions.Update(ctx, sess, state.Initiated); err != nil {
		return nil, fmt.Errorf("advance transfer session: %w", err)
	}

	s.metrics.TransfersInitiated.Inc()
	s.logger.InfoContext(ctx, "outbound transfer initiated",
		slog.String("transfer_id", sess.TransferID),
		slog.String("user_id", userID),
		slog.String("operator_id", operatorID))

	return &InitiateResult{TransferID: sess.TransferID, Status: "initiated"}, nil
}

// HandleUserResponse stores the citizen profile delivered by the identity
// responder and moves the saga to waiting-for-documents.
func (s *Service) HandleUserResponse(ctx context.Context, req models.UserResponse) error {
	sess, ok, err := s.load(ctx, req.TransferID, models.TopicTransferUserResponse, state.PendingDocuments)
	if !ok {
		return err
	}

	from := sess.State
	sess.State = state.PendingDocuments
	sess.User = &req.User
	if err := s.sessions.Update(ctx, sess, from); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicTransferUserResponse, err)
	}
	return nil
}

// HandleDocumentsResponse is the commit point of the saga: with profile and
// document links in hand it deregisters the citizen and delivers the
// package. Each external failure terminates the saga with FAILED and one
// error-topic message; nothing here is retried.
func (s *Service) HandleDocumentsResponse(ctx context.Context, req models.DocumentsResponse) error {
	sess, ok, err := s.load(ctx, req.TransferID, models.TopicTransferDocumentsResponse, state.PendingConfirmation)
	if !ok {
		return err
	}

	from := sess.State
	sess.State = state.PendingConfirmation
	sess.Documents = req.Documents
	if err := s.sessions.Update(ctx, sess, from); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicTransferDocumentsResponse, err)
	}

	// One attempt only. Retrying a deregistration that may have succeeded
	// risks releasing the citizen while the handoff already failed.
	if err := s.directory.UnregisterCitizen(ctx, sess.UserID); err != nil {
		return s.fail(ctx, sess, fmt.Sprintf("deregister citizen: %v", err))
	}

	operator, err := s.directory.GetOperatorByID(ctx, sess.OperatorID)
	if err != nil {
		return s.fail(ctx, sess, fmt.Sprintf("resolve destination operator: %v", err))
	}

	if err := s.gateway.Deliver(ctx, operator.TransferAPIURL, s.assemblePayload(sess)); err != nil {
		return s.fail(ctx, sess, fmt.Sprintf("deliver to operator %s: %v", sess.OperatorID, err))
	}

	sess.State = state.Deregistered
	if err := s.sessions.Update(ctx, sess, state.PendingConfirmation); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicTransferDocumentsResponse, err)
	}
	sess.State = state.Delivered
	if err := s.sessions.Update(ctx, sess, state.Deregistered); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicTransferDocumentsResponse, err)
	}

	s.metrics.TransfersDelivered.Inc()
	s.logger.InfoContext(ctx, "outbound transfer delivered",
		slog.String("transfer_id", sess.TransferID),
		slog.String("operator_id", sess.OperatorID),
		slog.Int("documents", len(sess.Documents)))
	return nil
}

// HandleError terminates the saga when a responder reported a failure.
func (s *Service) HandleError(ctx context.Context, req models.ErrorMessage) error {
	if req.TransferID == "" {
		return nil
	}
	sess, err := s.sessions.Get(ctx, req.TransferID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session %s: %w", req.TransferID, err)
	}
	if state.Outbound.IsTerminal(sess.State) {
		return nil
	}

	from := sess.State
	sess.State = state.Failed
	sess.LastError = req.Message
	if err := s.sessions.Update(ctx, sess, from); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicTransferError, err)
	}
	s.metrics.TransfersFailed.Inc()
	s.logger.WarnContext(ctx, "outbound transfer failed",
		slog.String("transfer_id", sess.TransferID), slog.String("cause", req.Message))
	return nil
}

// Status returns the session for a transfer, for the HTTP status endpoint.
func (s *Service) Status(ctx context.Context, transferID string) (*models.OutboundSession, error) {
	sess, err := s.sessions.Get(ctx, transferID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "transfer not found")
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// load fetches the session and guards the intended transition. ok=false
// means the caller should stop with the returned error (nil for the benign
// cases: unknown session or stale message).
func (s *Service) load(ctx context.Context, transferID, topic string, to state.State) (*models.OutboundSession, bool, error) {
	sess, err := s.sessions.Get(ctx, transferID)
	if errors.Is(err, session.ErrNotFound) {
		s.logger.WarnContext(ctx, "message for unknown transfer session",
			slog.String("transfer_id", transferID), slog.String("topic", topic))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", transferID, err)
	}
	if !state.Outbound.CanTransition(sess.State, to) {
		s.discardStale(ctx, transferID, topic, sess.State, to)
		return nil, false, nil
	}
	return sess, true, nil
}

// updateResult maps a store update error: losing the optimistic state race
// means a duplicate got there first, which is an ack, not a failure.
func (s *Service) updateResult(ctx context.Context, transferID, topic string, err error) error {
	if errors.Is(err, session.ErrStaleTransition) {
		s.metrics.StaleMessages.WithLabelValues(topic).Inc()
		s.logger.InfoContext(ctx, "lost state race to a duplicate, discarding",
			slog.String("transfer_id", transferID), slog.String("topic", topic))
		return nil
	}
	return fmt.Errorf("update session %s: %w", transferID, err)
}

func (s *Service) discardStale(ctx context.Context, transferID, topic string, from, to state.State) {
	s.metrics.StaleMessages.WithLabelValues(topic).Inc()
	s.logger.InfoContext(ctx, "discarding stale message",
		slog.String("transfer_id", transferID),
		slog.String("topic", topic),
		slog.String("session_state", string(from)),
		slog.String("implied_state", string(to)))
}

// fail terminates the saga and emits the single error-topic message that
// tells the rest of the system about it.
func (s *Service) fail(ctx context.Context, sess *models.OutboundSession, cause string) error {
	from := sess.State
	sess.State = state.Failed
	sess.LastError = cause
	if err := s.sessions.Update(ctx, sess, from); err != nil && !errors.Is(err, session.ErrStaleTransition) {
		return fmt.Errorf("mark session %s failed: %w", sess.TransferID, err)
	}

	s.metrics.TransfersFailed.Inc()
	s.logger.ErrorContext(ctx, "outbound transfer failed",
		slog.String("transfer_id", sess.TransferID), slog.String("cause", cause))

	return s.publisher.Publish(ctx, models.TopicTransferError, sess.TransferID, models.ErrorMessage{
		TransferID: sess.TransferID,
		Message:    cause,
	})
}

// assemblePayload shapes the inter-operator package: document links grouped
// by title, profile flattened to the shared contract.
func (s *Service) assemblePayload(sess *models.OutboundSession) models.IncomingPayload {
	urlDocuments := make(map[string][]string, len(sess.Documents))
	for _, doc := range sess.Documents {
		urlDocuments[doc.Title] = append(urlDocuments[doc.Title], doc.PresignedURL)
	}
	payload := models.IncomingPayload{
		ID:           sess.UserID,
		URLDocuments: urlDocuments,
	}
	if sess.User != nil {
		payload.CitizenName = sess.User.FullName()
		payload.CitizenEmail = sess.User.Email
		payload.CitizenAddress = sess.User.Address
	}
	return payload
}
