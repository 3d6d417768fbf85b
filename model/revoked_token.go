package model

import "time"

// Revocation reasons recorded with each entry
const (
	RevocationReasonLogout        = "logout"
	RevocationReasonTokenRefresh  = "token_refresh"
	RevocationReasonPasswordReset = "password_reset"
	RevocationReasonManual        = "manual_revoke"
)

// RevokedToken is the durable backend of the revocation set. Deliberately no
// gorm.DeletedAt: a revoked token must never be soft-undeleted, expired rows
// are hard-deleted by the cleanup job.
type RevokedToken struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	JTI           string    `gorm:"uniqueIndex;not null;type:varchar(64)" json:"jti"`
	TokenHash     string    `gorm:"index;type:varchar(64)" json:"-"` // sha256 hex of the raw token
	PrincipalType string    `gorm:"type:varchar(20)" json:"principal_type"`
	PrincipalID   uint      `gorm:"index" json:"principal_id"`
	Reason        string    `gorm:"type:varchar(100)" json:"reason"` // logout, token_refresh, password_reset, manual_revoke
	ExpiresAt     time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for RevokedToken
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
