// Package store persists document metadata.
package store

import (
	"context"
	"errors"

	"github.com/josuedanielbust/docucol/internal/documents/models"
)

// ErrNotFound is returned when no document matches.
var ErrNotFound = errors.New("document not found")

// Store is the document metadata port. DeleteByUser returns the removed
// records so the caller can clean object storage too.
//
//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
	DeleteByUser(ctx context.Context, userID string) ([]models.Document, error)
}
