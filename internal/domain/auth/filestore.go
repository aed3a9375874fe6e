package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scc-link-go/internal/platform/errors"
)

// FileStore persists credentials as a JSON document on disk, the desktop
// analogue of the browser's cookie-backed auth state. Stale entries read as
// absent.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Current() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Credentials{}, false
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false
	}
	if creds.Token == "" || creds.expired(time.Now()) {
		return Credentials{}, false
	}
	return creds, true
}

func (s *FileStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(errors.KindStorage, "save", "create credential dir", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return errors.Wrap(errors.KindStorage, "save", "encode credentials", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrap(errors.KindStorage, "save", "write credentials", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.KindStorage, "clear", "remove credentials", err)
	}
	return nil
}
