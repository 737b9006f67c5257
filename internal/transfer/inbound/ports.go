// Package inbound coordinates the importing side of a citizen transfer:
// receive the package from a foreign operator, drive account and document
// creation, and settle the citizen's confirm-or-reject decision.
package inbound

import (
	"context"

	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// SessionStore persists inbound saga sessions. GetByUserID serves the
// confirmation endpoints, which only know the citizen id.
type SessionStore interface {
	Create(ctx context.Context, sess *models.IncomingSession) error
	Get(ctx context.Context, transferID string) (*models.IncomingSession, error)
	GetByUserID(ctx context.Context, userID string) (*models.IncomingSession, error)
	Update(ctx context.Context, sess *models.IncomingSession, expected state.State) error
}

// Publisher is the outbound message port.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Directory registers the arriving citizen with the government directory
// once the transfer is confirmed.
type Directory interface {
	RegisterCitizen(ctx context.Context, userID, name, address, email, operatorID, operatorName string) error
}
