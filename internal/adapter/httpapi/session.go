package httpapi

import (
	"context"
	"errors"
	"sync"

	"inkwell-ai/internal/domain"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// MemorySessionStore keeps chat sessions in process memory. Durable session
// storage belongs to an external collaborator; this store only backs the
// WebSocket chat surface.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ChatSession
}

var _ domain.SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*domain.ChatSession)}
}

// Get returns a copy of the session with the given id.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *session
	cp.Messages = append([]domain.Message(nil), session.Messages...)
	return &cp, nil
}

// Save stores a copy of the session, overwriting any previous state.
func (s *MemorySessionStore) Save(_ context.Context, session *domain.ChatSession) error {
	if session == nil || session.ID == "" {
		return errors.New("session id is required")
	}
	cp := *session
	cp.Messages = append([]domain.Message(nil), session.Messages...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &cp
	return nil
}

// Len returns the number of stored sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
