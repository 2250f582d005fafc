// Package sessions implements the conversation session store.
package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dbgenie/dbgenie/pkg/contracts"
	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a session ID is unknown.
var ErrNotFound = errors.New("session not found")

// MemoryStore is an in-memory SessionStore. Appends are atomic per key:
// the store mutex covers the whole multi-turn append, so concurrent
// requests on the same session cannot interleave their turn pairs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

var _ contracts.SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

// Create registers a new empty session with a generated ID.
func (s *MemoryStore) Create(ctx context.Context) (*models.Session, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return copySession(session), nil
}

// Get returns a snapshot of the session. The returned value is a copy;
// mutating it does not affect the store.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(session), nil
}

// Ensure registers the session ID if it is not already known. Lets callers
// bring their own session IDs on the first request.
func (s *MemoryStore) Ensure(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return nil
	}
	now := time.Now().UTC()
	s.sessions[sessionID] = &models.Session{ID: sessionID, CreatedAt: now, UpdatedAt: now}
	return nil
}

// AppendTurns appends the turns to the session history in order, as one
// atomic operation.
func (s *MemoryStore) AppendTurns(ctx context.Context, sessionID string, turns ...models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Turns = append(session.Turns, turns...)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// Clear empties the session history but keeps the session registered.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Turns = nil
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the session entirely.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func copySession(session *models.Session) *models.Session {
	out := *session
	out.Turns = make([]models.Turn, len(session.Turns))
	copy(out.Turns, session.Turns)
	return &out
}
