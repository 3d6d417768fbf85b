package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/lms-api/utils/cache"
)

const revocationKeyPrefix = "revoked_tokens:%s"

// RedisRevocationSet shares revocations across server instances through
// Redis. Expiry lands on the key TTL, so eviction is Redis's problem.
type RedisRevocationSet struct {
	cache *cache.RedisCache
}

// NewRedisRevocationSet wraps an established Redis connection
func NewRedisRevocationSet(c *cache.RedisCache) *RedisRevocationSet {
	return &RedisRevocationSet{cache: c}
}

// Add stores the identifier with a TTL matching its natural expiry
func (s *RedisRevocationSet) Add(ctx context.Context, entry RevocationEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	key := fmt.Sprintf(revocationKeyPrefix, entry.TokenID)
	return s.cache.Set(ctx, key, entry.Reason, ttl)
}

// Contains checks membership. Errors propagate so callers can fail closed.
func (s *RedisRevocationSet) Contains(ctx context.Context, tokenID string) (bool, error) {
	key := fmt.Sprintf(revocationKeyPrefix, tokenID)
	return s.cache.Exists(ctx, key)
}

// Close is a no-op; the cache connection is owned by the caller
func (s *RedisRevocationSet) Close() error {
	return nil
}
