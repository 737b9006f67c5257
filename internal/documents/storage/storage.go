// Package storage is the object storage boundary for document bytes.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore stores document bytes. PresignDownload mints a time-limited
// URL a foreign operator can fetch without credentials.
//
//go:generate mockgen -source=storage.go -destination=mocks/mocks.go -package=mocks
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
