package auth

import (
	"sync"
	"time"

	"scc-link-go/internal/contracts/qrlink"
)

// Credentials is the persisted client auth state: bearer token plus the user
// object it belongs to, with a fixed expiry horizon.
type Credentials struct {
	Token     string      `json:"token"`
	User      qrlink.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func (c Credentials) expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// CredentialStore abstracts where credentials live so the adapter can stage
// and roll back without knowing the storage mechanism.
type CredentialStore interface {
	Current() (Credentials, bool)
	Save(Credentials) error
	Clear() error
}

// MemoryStore keeps credentials in process memory. Used by tests and
// short-lived tooling.
type MemoryStore struct {
	mu    sync.Mutex
	creds Credentials
	set   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Current() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || s.creds.expired(time.Now()) {
		return Credentials{}, false
	}
	return s.creds, true
}

func (s *MemoryStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.set = true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	s.set = false
	return nil
}
