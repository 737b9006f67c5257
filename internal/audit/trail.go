package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	"github.com/josuedanielbust/docucol/pkg/requestcontext"
)

// Trail buffers events through a channel so recording never blocks message
// processing. A full inbox drops the event; the trail is an aid, not a
// dependency, and must not be able to stall a saga.
type Trail struct {
	store  Store
	inbox  chan Event
	logger *slog.Logger
}

func NewTrail(store Store, buffer int, logger *slog.Logger) *Trail {
	return &Trail{
		store:  store,
		inbox:  make(chan Event, buffer),
		logger: logger.With(slog.String("component", "audit_trail")),
	}
}

// Record queues an event for persistence.
func (t *Trail) Record(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case t.inbox <- event:
	default:
		t.logger.Warn("audit inbox full, dropping event",
			"transfer_id", event.TransferID, "topic", event.Topic)
	}
}

// Run drains the inbox until ctx is cancelled, then flushes what is queued.
func (t *Trail) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.flush()
			return nil
		case event := <-t.inbox:
			t.append(ctx, event)
		}
	}
}

func (t *Trail) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-t.inbox:
			t.append(ctx, event)
		default:
			return
		}
	}
}

func (t *Trail) append(ctx context.Context, event Event) {
	if err := t.store.Append(ctx, event); err != nil {
		t.logger.Error("append audit event failed",
			"transfer_id", event.TransferID, "topic", event.Topic, "error", err)
	}
}

// Wrap decorates a consumer handler so every record leaves a trail entry
// with its outcome. Handler errors pass through untouched.
func (t *Trail) Wrap(next consumer.Handler) consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		err := next.Handle(ctx, msg)

		transferID := requestcontext.TransferID(ctx)
		if transferID == "" {
			transferID = string(msg.Key)
		}
		event := Event{
			TransferID: transferID,
			Topic:      msg.Topic,
			Outcome:    OutcomeProcessed,
		}
		if err != nil {
			event.Outcome = OutcomeFailed
			event.Detail = err.Error()
		}
		t.Record(event)

		return err
	})
}
