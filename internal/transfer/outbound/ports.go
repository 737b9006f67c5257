// Package outbound coordinates the exporting side of a citizen transfer:
// initiate, collect the citizen profile and document links from the
// responders, deregister, and hand the package to the destination operator.
package outbound

import (
	"context"

	"github.com/josuedanielbust/docucol/internal/directory"
	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// SessionStore persists outbound saga sessions.
type SessionStore interface {
	Create(ctx context.Context, sess *models.OutboundSession) error
	Get(ctx context.Context, transferID string) (*models.OutboundSession, error)
	Update(ctx context.Context, sess *models.OutboundSession, expected state.State) error
}

// Publisher is the outbound message port.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Directory is the slice of the government directory the coordinator needs.
type Directory interface {
	ValidateUser(ctx context.Context, userID string) (bool, string, error)
	UnregisterCitizen(ctx context.Context, userID string) error
	GetOperatorByID(ctx context.Context, operatorID string) (*directory.OperatorRecord, error)
}

// OperatorGateway delivers the citizen package to a peer operator.
type OperatorGateway interface {
	Deliver(ctx context.Context, transferAPIURL string, payload models.IncomingPayload) error
}
