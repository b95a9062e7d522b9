package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/crypto"
)

// ErrNotSaved is returned by Load when no session was stored.
var ErrNotSaved = errors.New("no saved session")

// Saved is what a Store persists.
type Saved struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Store persists the session between runs.
type Store interface {
	Load() (Saved, error)
	Save(Saved) error
	Clear() error
}

// sessionSalt fixes the key derivation so the same passphrase opens the
// file across runs.
var sessionSalt = []byte("caravan.session.v1")

// FileStore keeps the session in a 0600 file, sealed with AES-GCM when a
// key is configured.
type FileStore struct {
	path   string
	sealer crypto.Sealer
}

// NewFileStore creates a store at path. key may be empty, a base64 32-byte
// key, or any other passphrase.
func NewFileStore(path, key string) (*FileStore, error) {
	s := &FileStore{path: path}
	if key == "" {
		return s, nil
	}
	sealer, err := crypto.NewAESGCMFromBase64Key(key)
	if err != nil {
		sealer, err = crypto.NewAESGCMFromPassphrase(key, sessionSalt)
		if err != nil {
			return nil, fmt.Errorf("session key: %w", err)
		}
	}
	s.sealer = sealer
	return s, nil
}

func (s *FileStore) Load() (Saved, error) {
	// #nosec G304 -- path comes from the user's own configuration
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Saved{}, ErrNotSaved
	}
	if err != nil {
		return Saved{}, fmt.Errorf("read session: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Open(data); err != nil {
			return Saved{}, fmt.Errorf("open session: %w", err)
		}
	}
	var saved Saved
	if err := json.Unmarshal(data, &saved); err != nil {
		return Saved{}, fmt.Errorf("decode session: %w", err)
	}
	return saved, nil
}

func (s *FileStore) Save(saved Saved) error {
	data, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStore keeps the session for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	saved *Saved
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Saved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return Saved{}, ErrNotSaved
	}
	return *s.saved, nil
}

func (s *MemoryStore) Save(saved Saved) error {
	s.mu.Lock()
	s.saved = &saved
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.saved = nil
	s.mu.Unlock()
	return nil
}
