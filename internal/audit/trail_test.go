package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrailRecordsOutcomes(t *testing.T) {
	store := NewMemoryStore()
	trail := NewTrail(store, 16, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = trail.Run(ctx)
		close(done)
	}()

	ok := trail.Wrap(consumer.HandlerFunc(func(context.Context, *consumer.Message) error {
		return nil
	}))
	failing := trail.Wrap(consumer.HandlerFunc(func(context.Context, *consumer.Message) error {
		return errors.New("decode failed")
	}))

	require.NoError(t, ok.Handle(ctx, &consumer.Message{
		Topic: "document.transfer.initiate",
		Key:   []byte("t-1"),
	}))
	require.Error(t, failing.Handle(ctx, &consumer.Message{
		Topic: "document.transfer.user.response",
		Key:   []byte("t-1"),
	}))

	require.Eventually(t, func() bool { return store.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	events, err := store.ListByTransfer(context.Background(), "t-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, OutcomeProcessed, events[0].Outcome)
	require.Equal(t, OutcomeFailed, events[1].Outcome)
	require.Contains(t, events[1].Detail, "decode failed")
	require.False(t, events[1].At.IsZero())
}

func TestTrailDropsWhenInboxFull(t *testing.T) {
	store := NewMemoryStore()
	trail := NewTrail(store, 1, testLogger())

	// No worker is draining, so only the first event fits.
	trail.Record(Event{TransferID: "t-1", Topic: "a", Outcome: OutcomeProcessed})
	trail.Record(Event{TransferID: "t-1", Topic: "b", Outcome: OutcomeProcessed})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, trail.Run(ctx))

	require.Equal(t, 1, store.Len())
}
