package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TokenStore persists credentials between requests. Implementations honor a
// per-entry TTL: expired entries read as absent and are lazily removed.
type TokenStore interface {
	Set(key, value string, ttl time.Duration) error
	Get(key string) (string, error)
	Remove(key string) error
	Clear() error
}

// MemoryTokenStore keeps tokens in a mutex-guarded map. Credentials vanish
// with the process, which is the right default for short-lived tools.
type MemoryTokenStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryTokenStore) Set(key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", ErrTokenNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return "", ErrTokenNotFound
	}
	return entry.value, nil
}

func (s *MemoryTokenStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

// storedToken is the JSON envelope written by file-backed stores.
type storedToken struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// FileTokenStore writes one JSON file per key under a directory. Pointing it
// at a stable directory makes credentials survive restarts.
type FileTokenStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileTokenStore creates the directory if needed. Files are written with
// 0600 since they hold live credentials.
func NewFileTokenStore(dir string) (*FileTokenStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating token store directory: %w", err)
	}
	return &FileTokenStore{dir: dir}, nil
}

func (s *FileTokenStore) Set(key, value string, ttl time.Duration) error {
	entry := storedToken{Value: value}
	if ttl > 0 {
		expiresAt := time.Now().Add(ttl)
		entry.ExpiresAt = &expiresAt
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.WriteFile(s.path(key), data, 0o600)
}

func (s *FileTokenStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrTokenNotFound
		}
		return "", err
	}

	var entry storedToken
	if err := json.Unmarshal(data, &entry); err != nil {
		// A mangled file reads as absent rather than wedging the client.
		_ = os.Remove(s.path(key))
		return "", ErrTokenNotFound
	}
	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		_ = os.Remove(s.path(key))
		return "", ErrTokenNotFound
	}
	return entry.Value, nil
}

func (s *FileTokenStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".json") {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FileTokenStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

// sanitizeKey keeps filenames flat and shell-safe whatever the caller used
// as a key.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

// SessionTokenStore is a FileTokenStore rooted in a fresh temp directory.
// The directory and everything in it is deleted on Close, so credentials
// live no longer than the process session that created them.
type SessionTokenStore struct {
	*FileTokenStore
}

func NewSessionTokenStore() (*SessionTokenStore, error) {
	dir, err := os.MkdirTemp("", "lms-session-*")
	if err != nil {
		return nil, fmt.Errorf("creating session token directory: %w", err)
	}
	inner, err := NewFileTokenStore(dir)
	if err != nil {
		return nil, err
	}
	return &SessionTokenStore{FileTokenStore: inner}, nil
}

// Close removes the session directory and all tokens inside it.
func (s *SessionTokenStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.dir)
}
