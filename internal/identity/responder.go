// Package identity owns citizen accounts and answers the saga messages that
// need them: profile lookups for outbound transfers and provisional account
// creation for inbound ones.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/josuedanielbust/docucol/internal/identity/models"
	"github.com/josuedanielbust/docucol/internal/identity/store"
	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	transfer "github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/pkg/email"
	"github.com/josuedanielbust/docucol/pkg/password"
)

// Publisher is the outbound message port.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Responder consumes identity-facing saga topics. Handlers are idempotent:
// redelivered messages re-publish the same answer instead of failing.
type Responder struct {
	store      store.Store
	publisher  Publisher
	operatorID string
	random     io.Reader
	logger     *slog.Logger
}

func NewResponder(s store.Store, publisher Publisher, operatorID string, random io.Reader, logger *slog.Logger) *Responder {
	return &Responder{
		store:      s,
		publisher:  publisher,
		operatorID: operatorID,
		random:     random,
		logger:     logger.With(slog.String("component", "identity_responder")),
	}
}

// Register wires the responder's topics into the consumer router.
func (r *Responder) Register(router *consumer.Router) {
	router.Register(transfer.TopicTransferInitiate, consumer.HandlerFunc(r.handleTransferInitiate))
	router.Register(transfer.TopicIncomingInitiate, consumer.HandlerFunc(r.handleIncomingInitiate))
	router.Register(transfer.TopicGetUserDetails, consumer.HandlerFunc(r.handleGetUserDetails))
	router.Register(transfer.TopicIncomingConfirmationInitiate, consumer.HandlerFunc(r.handleConfirmation))
}

// handleTransferInitiate answers an outbound transfer start with the
// citizen's sanitized profile. An unknown citizen is a business failure:
// the saga is told on the error topic and the message is acked.
func (r *Responder) handleTransferInitiate(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.InitiateTransfer](msg.Value)
	if err != nil {
		return err
	}

	user, err := r.store.Get(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		r.logger.WarnContext(ctx, "transfer initiated for unknown user",
			slog.String("transfer_id", req.TransferID), slog.String("user_id", req.UserID))
		return r.publisher.Publish(ctx, transfer.TopicTransferError, req.TransferID, transfer.ErrorMessage{
			TransferID: req.TransferID,
			Message:    fmt.Sprintf("user %s not found", req.UserID),
		})
	}
	if err != nil {
		return fmt.Errorf("load user %s: %w", req.UserID, err)
	}

	return r.publisher.Publish(ctx, transfer.TopicTransferUserResponse, req.TransferID, transfer.UserResponse{
		Success:    true,
		Message:    "user details retrieved",
		TransferID: req.TransferID,
		OperatorID: req.OperatorID,
		Status:     "pending_documents",
		User:       profileOf(user),
	})
}

// handleIncomingInitiate creates the provisional citizen for an inbound
// transfer and hands the one-time password to the rest of the saga. The
// password exists only inside the response message.
func (r *Responder) handleIncomingInitiate(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.IncomingInitiate](msg.Value)
	if err != nil {
		return err
	}

	oneTime, err := password.Generate(r.random)
	if err != nil {
		return fmt.Errorf("generate one-time password: %w", err)
	}

	firstName, lastName, _ := strings.Cut(req.Payload.CitizenName, " ")
	if firstName == "" {
		// Some operators send the name only in the email address.
		firstName, lastName = email.DeriveNameFromEmail(req.Payload.CitizenEmail)
	}
	user := &models.User{
		ID:        req.Payload.ID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     req.Payload.CitizenEmail,
		Address:   req.Payload.CitizenAddress,
	}
	if err := r.store.Upsert(ctx, user); err != nil {
		return fmt.Errorf("create incoming user %s: %w", user.ID, err)
	}

	r.logger.InfoContext(ctx, "provisional citizen created",
		slog.String("transfer_id", req.TransferID), slog.String("user_id", user.ID))

	return r.publisher.Publish(ctx, transfer.TopicIncomingUserResponse, req.TransferID, transfer.IncomingUserResponse{
		TransferID: req.TransferID,
		Status:     "pending_documents",
		Message:    "user created",
		Payload:    req.Payload,
		User:       profileOf(user),
		Password:   oneTime,
	})
}

func (r *Responder) handleGetUserDetails(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.GetUserDetails](msg.Value)
	if err != nil {
		return err
	}

	user, err := r.store.Get(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return r.publisher.Publish(ctx, transfer.TopicIncomingError, req.TransferID, transfer.ErrorMessage{
			TransferID: req.TransferID,
			Message:    fmt.Sprintf("user %s not found", req.UserID),
		})
	}
	if err != nil {
		return fmt.Errorf("load user %s: %w", req.UserID, err)
	}

	return r.publisher.Publish(ctx, transfer.TopicGetUserDetailsResponse, req.TransferID, transfer.GetUserDetailsResponse{
		TransferID: req.TransferID,
		User:       profileOf(user),
	})
}

// handleConfirmation compensates a rejected inbound transfer by deleting the
// provisional citizen. An already-deleted user is acked, not retried.
func (r *Responder) handleConfirmation(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.ConfirmationInitiate](msg.Value)
	if err != nil {
		return err
	}
	if req.Payload.ReqStatus != "rejected" {
		return nil
	}

	err = r.store.Delete(ctx, req.Payload.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("purge rejected user %s: %w", req.Payload.ID, err)
	}
	r.logger.InfoContext(ctx, "provisional citizen purged after rejection",
		slog.String("transfer_id", req.TransferID), slog.String("user_id", req.Payload.ID))
	return nil
}

func profileOf(user *models.User) transfer.CitizenProfile {
	return transfer.CitizenProfile{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Address:   user.Address,
	}
}
