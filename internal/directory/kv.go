package directory

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by KV.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// KV is the key-value cache the directory layer writes operator data
// through. Implementations must treat an expired key as absent.
//
//go:generate mockgen -source=kv.go -destination=mocks/kv-mocks.go -package=mocks
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
