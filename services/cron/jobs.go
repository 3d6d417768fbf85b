package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/lms-api/model"
)

// Retention windows for maintenance sweeps
const (
	usedResetTokenRetention = 7 * 24 * time.Hour
	auditLogRetention       = 180 * 24 * time.Hour
	cronLogRetention        = 30 * 24 * time.Hour
)

// expiredSweeper is implemented by revocation backends that keep rows
// needing an explicit sweep (the database backend). Memory and redis
// backends expire entries on their own.
type expiredSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupExpiredRevocations removes revocation rows past their natural
// expiry. A revoked token that has also expired no longer needs a row:
// signature validation rejects it anyway.
func (m *CronManager) CleanupExpiredRevocations(ctx context.Context) (string, error) {
	sweeper, ok := m.revocations.(expiredSweeper)
	if !ok {
		return "revocation backend expires entries itself, nothing to sweep", nil
	}

	removed, err := sweeper.CleanupExpired(ctx)
	if err != nil {
		return "", fmt.Errorf("sweep revocations: %w", err)
	}
	return fmt.Sprintf("removed %d expired revocation rows", removed), nil
}

// CleanupExpiredResetTokens removes password reset tokens that can never be
// redeemed again: expired ones immediately, used ones after a short
// forensic window.
func (m *CronManager) CleanupExpiredResetTokens(ctx context.Context) (string, error) {
	db := m.db.WithContext(ctx)

	expired := db.Unscoped().
		Where("expires_at < ?", time.Now()).
		Delete(&model.PasswordResetToken{})
	if expired.Error != nil {
		return "", fmt.Errorf("delete expired reset tokens: %w", expired.Error)
	}

	used := db.Unscoped().
		Where("used_at IS NOT NULL AND used_at < ?", time.Now().Add(-usedResetTokenRetention)).
		Delete(&model.PasswordResetToken{})
	if used.Error != nil {
		return "", fmt.Errorf("delete used reset tokens: %w", used.Error)
	}

	return fmt.Sprintf("removed %d expired and %d used reset tokens",
		expired.RowsAffected, used.RowsAffected), nil
}

// CleanupOldAuditLogs trims the admin audit trail to its retention window
func (m *CronManager) CleanupOldAuditLogs(ctx context.Context) (string, error) {
	res := m.db.WithContext(ctx).Unscoped().
		Where("created_at < ?", time.Now().Add(-auditLogRetention)).
		Delete(&model.AdminAuditLog{})
	if res.Error != nil {
		return "", fmt.Errorf("delete old audit logs: %w", res.Error)
	}
	return fmt.Sprintf("removed %d audit log rows", res.RowsAffected), nil
}

// CleanupOldCronLogs trims old job execution records
func (m *CronManager) CleanupOldCronLogs(ctx context.Context) (string, error) {
	res := m.db.WithContext(ctx).Unscoped().
		Where("created_at < ?", time.Now().Add(-cronLogRetention)).
		Delete(&model.CronJobLog{})
	if res.Error != nil {
		return "", fmt.Errorf("delete old cron logs: %w", res.Error)
	}
	return fmt.Sprintf("removed %d cron log rows", res.RowsAffected), nil
}
