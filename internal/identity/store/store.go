// Package store persists citizen accounts for the identity responder.
package store

import (
	"context"
	"errors"

	"github.com/josuedanielbust/docucol/internal/identity/models"
)

// ErrNotFound is returned when no user exists for the given id.
var ErrNotFound = errors.New("user not found")

// Store is the identity persistence port. Upsert makes the incoming-transfer
// path idempotent under redelivery.
//
//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks
type Store interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}
