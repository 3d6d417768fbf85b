package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sahilchouksey/lms-api/utils/cache"
	"gorm.io/gorm"
)

// Revocation backend names accepted by NewRevocationSet
const (
	RevocationBackendMemory   = "memory"
	RevocationBackendRedis    = "redis"
	RevocationBackendDatabase = "database"
)

// RevocationEntry describes a retired token identifier. TokenID is a JTI or
// session ID; the remaining fields are audit metadata that only the database
// backend persists.
type RevocationEntry struct {
	TokenID       string
	TokenHash     string // sha256 hex of the raw token, when available
	PrincipalType string
	PrincipalID   uint
	Reason        string
	ExpiresAt     time.Time
}

// RevocationSet tracks retired token identifiers until their natural expiry.
// Contains is consulted before any refresh is honored and on every
// authenticated request. Implementations are injected, never package-level.
type RevocationSet interface {
	Add(ctx context.Context, entry RevocationEntry) error
	Contains(ctx context.Context, tokenID string) (bool, error)
	Close() error
}

// NewRevocationSet selects a backend by name. The redis backend needs a
// cache handle, the database backend a gorm handle; passing nil for the
// required dependency is a configuration error.
func NewRevocationSet(backend string, db *gorm.DB, redisCache *cache.RedisCache) (RevocationSet, error) {
	switch backend {
	case RevocationBackendMemory, "":
		return NewMemoryRevocationSet(), nil
	case RevocationBackendRedis:
		if redisCache == nil {
			return nil, fmt.Errorf("revocation backend %q requires REDIS_URL", backend)
		}
		return NewRedisRevocationSet(redisCache), nil
	case RevocationBackendDatabase:
		if db == nil {
			return nil, fmt.Errorf("revocation backend %q requires a database connection", backend)
		}
		return NewGormRevocationSet(db), nil
	default:
		return nil, fmt.Errorf("unknown revocation backend %q", backend)
	}
}

const janitorInterval = time.Minute

// MemoryRevocationSet keeps revoked identifiers in a map with a janitor
// goroutine evicting entries past their expiry. Contains never touches I/O.
//
// This backend is process-local: independent server instances do not see
// each other's revocations. Multi-instance deployments must use the redis
// or database backend instead.
type MemoryRevocationSet struct {
	mu        sync.RWMutex
	entries   map[string]time.Time // token ID -> natural expiry
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryRevocationSet creates the set and starts its janitor
func NewMemoryRevocationSet() *MemoryRevocationSet {
	s := &MemoryRevocationSet{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Add schedules the identifier for automatic removal at its expiry. Already
// expired entries are ignored.
func (s *MemoryRevocationSet) Add(_ context.Context, entry RevocationEntry) error {
	if !entry.ExpiresAt.After(time.Now()) {
		return nil
	}
	s.mu.Lock()
	s.entries[entry.TokenID] = entry.ExpiresAt
	s.mu.Unlock()
	return nil
}

// Contains reports membership. Entries past expiry read as absent even
// before the janitor sweeps them.
func (s *MemoryRevocationSet) Contains(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	expiresAt, ok := s.entries[tokenID]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return time.Now().Before(expiresAt), nil
}

// Size returns the live entry count, for metrics
func (s *MemoryRevocationSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the janitor. Entries are dropped with the process.
func (s *MemoryRevocationSet) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryRevocationSet) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, expiresAt := range s.entries {
				if now.After(expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
