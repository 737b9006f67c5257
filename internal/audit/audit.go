// Package audit keeps an append-only trail of saga message processing. Every
// consumed record lands here with its outcome, so a support engineer can
// reconstruct what happened to a transfer without trawling broker offsets.
package audit

import (
	"context"
	"time"
)

// Event is one processed saga message.
type Event struct {
	ID         string
	TransferID string
	Topic      string
	Outcome    string
	Detail     string
	At         time.Time
}

// Outcomes recorded per message.
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTransfer(ctx context.Context, transferID string) ([]Event, error)
}
