package server

import (
	"context"
	"sync"
	"time"

	"scc-link-go/internal/platform/errors"
)

// SessionStatus tracks a QR session on the backend side.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionScanned   SessionStatus = "scanned"
	SessionConfirmed SessionStatus = "confirmed"
	SessionCancelled SessionStatus = "cancelled"
)

// ErrSessionNotFound is returned for unknown or already-expired sessions.
var ErrSessionNotFound = errors.New(errors.KindSession, "store", "session not found")

// LinkSession is one QR login attempt as tracked by the backend.
type LinkSession struct {
	ID        string        `json:"id"`
	Payload   string        `json:"payload"`
	Status    SessionStatus `json:"status"`
	UserEmail string        `json:"userEmail,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

func (s LinkSession) expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionStore persists link sessions for their five-minute lifetime.
type SessionStore interface {
	Put(ctx context.Context, session LinkSession) error
	Get(ctx context.Context, id string) (LinkSession, error)
	Delete(ctx context.Context, id string) error
}

// memoryStore keeps sessions in process memory, reaping on access.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]LinkSession
}

// NewMemoryStore builds an in-process session store.
func NewMemoryStore() SessionStore {
	return &memoryStore{sessions: make(map[string]LinkSession)}
}

func (s *memoryStore) Put(ctx context.Context, session LinkSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (LinkSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return LinkSession{}, ErrSessionNotFound
	}
	if session.expired(time.Now()) {
		delete(s.sessions, id)
		return LinkSession{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
