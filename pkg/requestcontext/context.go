// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services and consumers read
// them, and neither side needs net/http for it.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	transferIDKey  struct{}
	requestTimeKey struct{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// TransferID retrieves the saga correlation id from the context. Message
// consumers set it so every log line inside a handler carries it.
func TransferID(ctx context.Context) string {
	if id, ok := ctx.Value(transferIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithTransferID injects a saga correlation id into the context.
func WithTransferID(ctx context.Context, transferID string) context.Context {
	return context.WithValue(ctx, transferIDKey{}, transferID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts like workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
