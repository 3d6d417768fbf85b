package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SystemUser is a back-office account. TenantID nil means platform-global
// (operates across all tenants); otherwise the account is pinned to one.
type SystemUser struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID     *uint          `gorm:"index" json:"tenant_id,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null;type:varchar(255)" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Role         string         `gorm:"type:varchar(20);default:'support'" json:"role"` // admin, support, operator
	Permissions  pq.StringArray `gorm:"type:text[]" json:"permissions"`                 // explicit grants on top of role
	Status       string         `gorm:"type:varchar(20);default:'active'" json:"status"`
	TokenVersion int            `gorm:"default:0" json:"-"`

	// Relationships
	Tenant    *Tenant         `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	AuditLogs []AdminAuditLog `gorm:"foreignKey:ActorID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for SystemUser
func (SystemUser) TableName() string {
	return "system_users"
}

// Principal returns the auth snapshot for this account. Explicit permission
// grants are merged with the role's implied set, deduplicated.
func (u *SystemUser) Principal() Principal {
	perms := RolePermissions(u.Role)
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		seen[p] = struct{}{}
	}
	for _, p := range u.Permissions {
		if _, ok := seen[p]; !ok {
			perms = append(perms, p)
			seen[p] = struct{}{}
		}
	}
	return Principal{
		ID:           u.ID,
		Type:         PrincipalTypeSystem,
		TenantID:     u.TenantID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Permissions:  perms,
		TokenVersion: u.TokenVersion,
		Status:       u.Status,
	}
}
