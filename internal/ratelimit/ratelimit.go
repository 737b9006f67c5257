// Package ratelimit guards the public transfer API against request floods.
// Counting normally runs against Redis so every replica shares one budget;
// when Redis misbehaves a circuit breaker degrades to a per-process window
// instead of failing requests.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts requests per key within a rolling window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
