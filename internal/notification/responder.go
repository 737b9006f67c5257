package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	transfer "github.com/josuedanielbust/docucol/internal/transfer/models"
)

// Publisher is the outbound message port.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Responder consumes the notification-facing saga topics. Mail failures are
// returned so the transport retries and eventually dead-letters; the saga
// must not report an email as sent when it never left.
type Responder struct {
	mailer            Mailer
	publisher         Publisher
	defaultConfirmAPI string
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

func NewResponder(mailer Mailer, publisher Publisher, defaultConfirmAPI string, m *metrics.Metrics, logger *slog.Logger) *Responder {
	return &Responder{
		mailer:            mailer,
		publisher:         publisher,
		defaultConfirmAPI: strings.TrimSuffix(defaultConfirmAPI, "/"),
		metrics:           m,
		logger:            logger.With(slog.String("component", "notification_responder")),
	}
}

// Register wires the responder's topics into the consumer router.
func (r *Responder) Register(router *consumer.Router) {
	router.Register(transfer.TopicTransferUserResponse, consumer.HandlerFunc(r.handleTransferUserResponse))
	router.Register(transfer.TopicIncomingUserResponse, consumer.HandlerFunc(r.handleIncomingUserResponse))
}

// handleTransferUserResponse mails the departing citizen a courtesy notice
// that the transfer started.
func (r *Responder) handleTransferUserResponse(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.UserResponse](msg.Value)
	if err != nil {
		return err
	}
	if !req.Success || req.User.Email == "" {
		return nil
	}

	body, err := renderTemplate(transferStartedTemplate, transferStartedData{Name: req.User.FullName()})
	if err != nil {
		return err
	}
	if err := r.mailer.Send(ctx, req.User.Email, "Tu traslado de operador está en curso", body); err != nil {
		return err
	}
	r.metrics.EmailsSent.Inc()

	return r.publisher.Publish(ctx, transfer.TopicTransferNotificationsResponse, req.TransferID, transfer.TransferNotificationsResponse{
		Success:    true,
		TransferID: req.TransferID,
		Message:    "transfer started notification sent",
	})
}

// handleIncomingUserResponse mails the arriving citizen their one-time
// password and the confirmation link, then reports the saga as awaiting
// the citizen's decision.
func (r *Responder) handleIncomingUserResponse(ctx context.Context, msg *consumer.Message) error {
	req, err := transfer.Decode[transfer.IncomingUserResponse](msg.Value)
	if err != nil {
		return err
	}
	if req.User.Email == "" {
		r.logger.WarnContext(ctx, "incoming citizen has no email, skipping notification",
			slog.String("transfer_id", req.TransferID), slog.String("user_id", req.User.ID))
		return nil
	}

	body, err := renderTemplate(incomingWelcomeTemplate, incomingWelcomeData{
		Name:       req.User.FullName(),
		Password:   req.Password,
		ConfirmURL: r.confirmURL(req.Payload.ConfirmAPI, req.User.ID),
	})
	if err != nil {
		return err
	}
	if err := r.mailer.Send(ctx, req.User.Email, "Confirma tu traslado a DocuCol", body); err != nil {
		return err
	}
	r.metrics.EmailsSent.Inc()

	return r.publisher.Publish(ctx, transfer.TopicIncomingNotificationsResponse, req.TransferID, transfer.IncomingNotificationsResponse{
		TransferID: req.TransferID,
		Status:     "pending_confirmation",
		Message:    "confirmation notification sent",
		Payload:    req.Payload,
		User:       req.User,
	})
}

// confirmURL builds the link the citizen follows to confirm receipt. The id
// travels base64-encoded, matching what the confirm endpoint decodes.
func (r *Responder) confirmURL(confirmAPI, userID string) string {
	base := strings.TrimSuffix(confirmAPI, "/")
	if base == "" {
		base = r.defaultConfirmAPI
	}
	token := base64.StdEncoding.EncodeToString([]byte(userID))
	return fmt.Sprintf("%s/transfer/transferCitizen/confirm/%s", base, token)
}
