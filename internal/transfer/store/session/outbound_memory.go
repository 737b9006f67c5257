package session

import (
	"context"
	"sync"
	"time"

	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
)

// OutboundMemory keeps outbound sessions in process memory.
type OutboundMemory struct {
	mu       sync.RWMutex
	sessions map[string]models.OutboundSession
}

// NewOutboundMemory constructs an empty in-memory outbound store.
func NewOutboundMemory() *OutboundMemory {
	return &OutboundMemory{sessions: make(map[string]models.OutboundSession)}
}

// Create stores a new session. Duplicate transferIds are rejected.
func (s *OutboundMemory) Create(_ context.Context, sess *models.OutboundSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.TransferID]; ok {
		return ErrStaleTransition
	}
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	s.sessions[sess.TransferID] = *sess
	return nil
}

// Get returns a copy of the session.
func (s *OutboundMemory) Get(_ context.Context, transferID string) (*models.OutboundSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[transferID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Update persists the session iff its stored state still equals expected.
func (s *OutboundMemory) Update(_ context.Context, sess *models.OutboundSession, expected state.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[sess.TransferID]
	if !ok {
		return ErrNotFound
	}
	if current.State != expected {
		return ErrStaleTransition
	}
	sess.CreatedAt = current.CreatedAt
	sess.UpdatedAt = time.Now()
	s.sessions[sess.TransferID] = *sess
	return nil
}

// DeleteStale removes non-terminal sessions last touched before olderThan.
func (s *OutboundMemory) DeleteStale(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if !state.Outbound.IsTerminal(sess.State) && sess.UpdatedAt.Before(olderThan) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
