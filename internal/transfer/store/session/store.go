// Package session persists saga sessions keyed by transferId. Each saga kind
// has an in-memory store for tests and single-process runs and a PostgreSQL
// store for real deployments. Updates are guarded by the expected current
// state so a racing duplicate message loses cleanly instead of rewinding
// the saga.
package session

import "errors"

var (
	// ErrNotFound means no session exists for the transferId.
	ErrNotFound = errors.New("transfer session not found")

	// ErrStaleTransition means the session moved past the expected state;
	// the caller is working from a duplicate or out-of-order message.
	ErrStaleTransition = errors.New("stale session transition")
)
