package inbound

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
	"github.com/josuedanielbust/docucol/internal/transfer/store/session"
	domainerrors "github.com/josuedanielbust/docucol/pkg/domain-errors"
)

// ReceiveResult is the synchronous answer to a foreign operator's delivery.
type ReceiveResult struct {
	TransferID string `json:"transferId"`
	Status     string `json:"status"`
}

// Service drives the inbound saga.
type Service struct {
	sessions     SessionStore
	publisher    Publisher
	directory    Directory
	operatorID   string
	operatorName string
	confirmAPI   string
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewService(
	sessions SessionStore,
	publisher Publisher,
	dir Directory,
	operatorID, operatorName, confirmAPI string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions:     sessions,
		publisher:    publisher,
		directory:    dir,
		operatorID:   operatorID,
		operatorName: operatorName,
		confirmAPI:   strings.TrimSuffix(confirmAPI, "/"),
		metrics:      m,
		logger:       logger.With(slog.String("component", "inbound_saga")),
	}
}

// Register wires the saga's consumed topics into the consumer router.
func (s *Service) Register(router *consumer.Router) {
	router.Register(models.TopicIncomingUserResponse, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		req, err := models.Decode[models.IncomingUserResponse](msg.Value)
		if err != nil {
			return err
		}
		return s.HandleUserResponse(ctx, req)
	}))
	router.Register(models.TopicIncomingNotificationsResponse, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		req, err := models.Decode[models.IncomingNotificationsResponse](msg.Value)
		if err != nil {
			return err
		}
		return s.HandleNotificationsResponse(ctx, req)
	}))
	router.Register(models.TopicGetUserDetailsResponse, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		req, err := models.Decode[models.GetUserDetailsResponse](msg.Value)
		if err != nil {
			return err
		}
		return s.HandleGetUserDetailsResponse(ctx, req)
	}))
	router.Register(models.TopicIncomingError, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		req, err := models.Decode[models.ErrorMessage](msg.Value)
		if err != nil {
			return err
		}
		return s.HandleError(ctx, req)
	}))
}

// ReceiveTransfer accepts a citizen package posted by a foreign operator,
// opens the saga, and answers immediately. The confirm URL base rides the
// payload so every later hop knows where the citizen confirms.
func (s *Service) ReceiveTransfer(ctx context.Context, payload models.IncomingPayload) (*ReceiveResult, error) {
	if payload.ID == "" || (payload.CitizenName == "" && payload.CitizenEmail == "") {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "id and citizenName or citizenEmail are required")
	}

	// A redelivered package for a transfer still in flight reuses the open
	// saga instead of opening a competing one.
	if existing, err := s.sessions.GetByUserID(ctx, payload.ID); err == nil && !state.Inbound.IsTerminal(existing.State) {
		s.logger.InfoContext(ctx, "duplicate incoming transfer, reusing open session",
			slog.String("transfer_id", existing.TransferID), slog.String("user_id", payload.ID))
		return &ReceiveResult{TransferID: existing.TransferID, Status: "received"}, nil
	}

	payload.ConfirmAPI = s.confirmAPI
	sess := &models.IncomingSession{
		TransferID: uuid.NewString(),
		UserID:     payload.ID,
		Payload:    payload,
		State:      state.Received,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create incoming session: %w", err)
	}

	if err := s.publisher.Publish(ctx, models.TopicIncomingInitiate, sess.TransferID, models.IncomingInitiate{
		TransferID: sess.TransferID,
		Status:     "received",
		Payload:    payload,
	}); err != nil {
		sess.State = state.Failed
		sess.LastError = err.Error()
		if updateErr := s.sessions.Update(ctx, sess, state.Received); updateErr != nil {
			s.logger.ErrorContext(ctx, "failed to mark unpublished incoming transfer as failed",
				slog.String("transfer_id", sess.TransferID), slog.Any("error", updateErr))
		}
		return nil, fmt.Errorf("publish incoming initiate: %w", err)
	}

	sess.State = state.PendingUserCreation
	if err := s.sessions.Update(ctx, sess, state.Received); err != nil {
		return nil, fmt.Errorf("advance incoming session: %w", err)
	}

	s.logger.InfoContext(ctx, "incoming transfer received",
		slog.String("transfer_id", sess.TransferID),
		slog.String("user_id", payload.ID),
		slog.Int("document_titles", len(payload.URLDocuments)))

	return &ReceiveResult{TransferID: sess.TransferID, Status: "received"}, nil
}

// HandleUserResponse records the provisional citizen and moves the saga
// through the materialization stage. The document and notification
// responders consume the same message; the coordinator only tracks state.
func (s *Service) HandleUserResponse(ctx context.Context, req models.IncomingUserResponse) error {
	sess, ok, err := s.load(ctx, req.TransferID, models.TopicIncomingUserResponse, state.PendingDocuments)
	if !ok {
		return err
	}

	from := sess.State
	sess.State = state.PendingDocuments
	sess.UserID = req.User.ID
	sess.Password = req.Password
	if err := s.sessions.Update(ctx, sess, from); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicIncomingUserResponse, err)
	}

	sess.State = state.PendingNotification
	if err := s.sessions.Update(ctx, sess, state.PendingDocuments); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicIncomingUserResponse, err)
	}
	return nil
}

// HandleNotificationsResponse parks the saga until the citizen decides.
func (s *Service) HandleNotificationsResponse(ctx context.Context, req models.IncomingNotificationsResponse) error {
	sess, ok, err := s.load(ctx, req.TransferID, models.TopicIncomingNotificationsResponse, state.AwaitingConfirmation)
	if !ok {
		return err
	}

	from := sess.State
	sess.State = state.AwaitingConfirmation
	// The confirmation email is out; the one-time password has no business
	// sitting in the database past this point.
	sess.Password = ""
	if err := s.sessions.Update(ctx, sess, from); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicIncomingNotificationsResponse, err)
	}
	return nil
}

// ConfirmByEncodedID handles the emailed confirmation link. The citizen id
// travels base64-encoded; confirmation itself completes asynchronously via
// the user-details round trip.
func (s *Service) ConfirmByEncodedID(ctx context.Context, encoded string) (*ReceiveResult, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "malformed confirmation token")
	}
	return s.confirm(ctx, string(decoded))
}

// ConfirmOrReject settles the saga from the explicit decision endpoint.
func (s *Service) ConfirmOrReject(ctx context.Context, userID, decision string) (*ReceiveResult, error) {
	switch decision {
	case "approved", "confirmed":
		return s.confirm(ctx, userID)
	case "rejected":
		return s.reject(ctx, userID)
	default:
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "req_status must be approved or rejected")
	}
}

func (s *Service) confirm(ctx context.Context, userID string) (*ReceiveResult, error) {
	sess, err := s.sessionForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !state.Inbound.CanTransition(sess.State, state.Confirmed) {
		return nil, domainerrors.New(domainerrors.CodeConflict, "transfer is not awaiting confirmation")
	}

	if err := s.publisher.Publish(ctx, models.TopicGetUserDetails, sess.TransferID, models.GetUserDetails{
		TransferID: sess.TransferID,
		UserID:     sess.UserID,
	}); err != nil {
		return nil, fmt.Errorf("publish user details request: %w", err)
	}
	return &ReceiveResult{TransferID: sess.TransferID, Status: "confirming"}, nil
}

// reject triggers the compensation chain: one confirmation-initiate message
// that the identity and document responders act on, then the session is
// closed as REJECTED.
func (s *Service) reject(ctx context.Context, userID string) (*ReceiveResult, error) {
	sess, err := s.sessionForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !state.Inbound.CanTransition(sess.State, state.Rejected) {
		return nil, domainerrors.New(domainerrors.CodeConflict, "transfer can no longer be rejected")
	}

	if err := s.publisher.Publish(ctx, models.TopicIncomingConfirmationInitiate, sess.TransferID, models.ConfirmationInitiate{
		TransferID: sess.TransferID,
		Payload:    models.ConfirmationDecision{ID: sess.UserID, ReqStatus: "rejected"},
	}); err != nil {
		return nil, fmt.Errorf("publish rejection: %w", err)
	}

	from := sess.State
	sess.State = state.Rejected
	if err := s.sessions.Update(ctx, sess, from); err != nil && !errors.Is(err, session.ErrStaleTransition) {
		return nil, fmt.Errorf("close rejected session: %w", err)
	}

	s.metrics.TransfersRejected.Inc()
	s.logger.InfoContext(ctx, "incoming transfer rejected",
		slog.String("transfer_id", sess.TransferID), slog.String("user_id", userID))
	return &ReceiveResult{TransferID: sess.TransferID, Status: "rejected"}, nil
}

// HandleGetUserDetailsResponse finishes a confirmation: the citizen is
// registered with the government directory under this operator and the
// saga closes as CONFIRMED.
func (s *Service) HandleGetUserDetailsResponse(ctx context.Context, req models.GetUserDetailsResponse) error {
	sess, ok, err := s.load(ctx, req.TransferID, models.TopicGetUserDetailsResponse, state.Confirmed)
	if !ok {
		return err
	}

	if err := s.directory.RegisterCitizen(ctx,
		req.User.ID, req.User.FullName(), req.User.Address, req.User.Email,
		s.operatorID, s.operatorName,
	); err != nil {
		return s.fail(ctx, sess, fmt.Sprintf("register citizen with directory: %v", err))
	}

	from := sess.State
	sess.State = state.Confirmed
	if err := s.sessions.Update(ctx, sess, from); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicGetUserDetailsResponse, err)
	}

	s.logger.InfoContext(ctx, "incoming transfer confirmed",
		slog.String("transfer_id", sess.TransferID), slog.String("user_id", sess.UserID))
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
	if state.Inbound.IsTerminal(sess.State) {
		return nil
	}

	from := sess.State
	sess.State = state.Failed
	sess.LastError = req.Message
	if err := s.sessions.Update(ctx, sess, from); err != nil {
		return s.updateResult(ctx, req.TransferID, models.TopicIncomingError, err)
	}
	s.metrics.TransfersFailed.Inc()
	s.logger.WarnContext(ctx, "incoming transfer failed",
		slog.String("transfer_id", sess.TransferID), slog.String("cause", req.Message))
	return nil
}

func (s *Service) sessionForUser(ctx context.Context, userID string) (*models.IncomingSession, error) {
	if userID == "" {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "citizen id is required")
	}
	sess, err := s.sessions.GetByUserID(ctx, userID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "no incoming transfer for this citizen")
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) load(ctx context.Context, transferID, topic string, to state.State) (*models.IncomingSession, bool, error) {
	sess, err := s.sessions.Get(ctx, transferID)
	if errors.Is(err, session.ErrNotFound) {
		s.logger.WarnContext(ctx, "message for unknown incoming session",
			slog.String("transfer_id", transferID), slog.String("topic", topic))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", transferID, err)
	}
	if !state.Inbound.CanTransition(sess.State, to) {
		s.metrics.StaleMessages.WithLabelValues(topic).Inc()
		s.logger.InfoContext(ctx, "discarding stale message",
			slog.String("transfer_id", transferID),
			slog.String("topic", topic),
			slog.String("session_state", string(sess.State)),
			slog.String("implied_state", string(to)))
		return nil, false, nil
	}
	return sess, true, nil
}

func (s *Service) updateResult(ctx context.Context, transferID, topic string, err error) error {
	if errors.Is(err, session.ErrStaleTransition) {
		s.metrics.StaleMessages.WithLabelValues(topic).Inc()
		s.logger.InfoContext(ctx, "lost state race to a duplicate, discarding",
			slog.String("transfer_id", transferID), slog.String("topic", topic))
		return nil
	}
	return fmt.Errorf("update session %s: %w", transferID, err)
}

func (s *Service) fail(ctx context.Context, sess *models.IncomingSession, cause string) error {
	from := sess.State
	sess.State = state.Failed
	sess.LastError = cause
	if err := s.sessions.Update(ctx, sess, from); err != nil && !errors.Is(err, session.ErrStaleTransition) {
		return fmt.Errorf("mark session %s failed: %w", sess.TransferID, err)
	}

	s.metrics.TransfersFailed.Inc()
	s.logger.ErrorContext(ctx, "incoming transfer failed",
		slog.String("transfer_id", sess.TransferID), slog.String("cause", cause))

	return s.publisher.Publish(ctx, models.TopicIncomingError, sess.TransferID, models.ErrorMessage{
		TransferID: sess.TransferID,
		Message:    cause,
	})
}
