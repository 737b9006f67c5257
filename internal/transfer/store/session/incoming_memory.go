package session

import (
	"context"
	"sync"
	"time"

	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
)

// IncomingMemory keeps incoming sessions in process memory.
type IncomingMemory struct {
	mu       sync.RWMutex
	sessions map[string]models.IncomingSession
}

// NewIncomingMemory constructs an empty in-memory incoming store.
func NewIncomingMemory() *IncomingMemory {
	return &IncomingMemory{sessions: make(map[string]models.IncomingSession)}
}

// Create stores a new session. Duplicate transferIds are rejected.
func (s *IncomingMemory) Create(_ context.Context, sess *models.IncomingSession) error {
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
func (s *IncomingMemory) Get(_ context.Context, transferID string) (*models.IncomingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[transferID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// GetByUserID returns the most recently updated session for a citizen.
// The confirmation link only carries the citizen id, not the transferId.
func (s *IncomingMemory) GetByUserID(_ context.Context, userID string) (*models.IncomingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.IncomingSession
	for id := range s.sessions {
		sess := s.sessions[id]
		if sess.UserID != userID && sess.Payload.ID != userID {
			continue
		}
		if latest == nil || sess.UpdatedAt.After(latest.UpdatedAt) {
			latest = &sess
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

// Update persists the session iff its stored state still equals expected.
func (s *IncomingMemory) Update(_ context.Context, sess *models.IncomingSession, expected state.State) error {
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

// Delete removes a session outright. Used once a saga reaches a terminal
// state and after rejection compensation completes.
func (s *IncomingMemory) Delete(_ context.Context, transferID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[transferID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, transferID)
	return nil
}

// DeleteStale removes non-terminal sessions last touched before olderThan.
func (s *IncomingMemory) DeleteStale(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if !state.Inbound.IsTerminal(sess.State) && sess.UpdatedAt.Before(olderThan) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
