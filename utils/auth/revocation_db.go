package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/sahilchouksey/lms-api/model"
	"gorm.io/gorm"
)

// GormRevocationSet keeps revocations in the revoked_tokens table: shared
// across instances, survives restarts, and leaves an audit trail. Expired
// rows are hard-deleted by CleanupExpired (wired to a cron job).
type GormRevocationSet struct {
	db *gorm.DB
}

// NewGormRevocationSet wraps an injected database handle
func NewGormRevocationSet(db *gorm.DB) *GormRevocationSet {
	return &GormRevocationSet{db: db}
}

// HashToken returns the sha256 hex digest stored alongside entries so raw
// tokens never land in the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Add inserts a revocation row. Duplicate identifiers are fine: the row
// already present keeps the token revoked.
func (s *GormRevocationSet) Add(ctx context.Context, entry RevocationEntry) error {
	if !entry.ExpiresAt.After(time.Now()) {
		return nil
	}
	row := model.RevokedToken{
		JTI:           entry.TokenID,
		TokenHash:     entry.TokenHash,
		PrincipalType: entry.PrincipalType,
		PrincipalID:   entry.PrincipalID,
		Reason:        entry.Reason,
		ExpiresAt:     entry.ExpiresAt,
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// Contains checks for a live revocation row. Errors propagate so callers
// can fail closed.
func (s *GormRevocationSet) Contains(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.RevokedToken{}).
		Where("jti = ? AND expires_at > ?", tokenID, time.Now()).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CleanupExpired hard-deletes rows past their natural expiry and returns the
// number removed
func (s *GormRevocationSet) CleanupExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&model.RevokedToken{})
	return res.RowsAffected, res.Error
}

// Count returns the number of live revocation rows, for metrics
func (s *GormRevocationSet) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.RevokedToken{}).
		Where("expires_at > ?", time.Now()).
		Count(&count).
		Error
	return count, err
}

// Close is a no-op; the database handle is owned by the caller
func (s *GormRevocationSet) Close() error {
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}
