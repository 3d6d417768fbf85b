package model

import (
	"time"

	"gorm.io/gorm"
)

// Teacher is a tenant-scoped teaching account
type Teacher struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID     uint           `gorm:"not null;index;uniqueIndex:ux_teachers_tenant_email" json:"tenant_id"`
	InstituteID  *uint          `gorm:"index" json:"institute_id,omitempty"`
	Email        string         `gorm:"not null;type:varchar(255);uniqueIndex:ux_teachers_tenant_email" json:"email"` // unique per tenant
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Phone        string         `gorm:"type:varchar(20)" json:"phone"`
	Status       string         `gorm:"type:varchar(20);default:'active'" json:"status"` // active, disabled
	TokenVersion int            `gorm:"default:0" json:"-"`                              // Increment to invalidate all sessions

	// Relationships
	Tenant    Tenant     `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	Institute *Institute `gorm:"foreignKey:InstituteID" json:"institute,omitempty"`
}

// TableName specifies the table name for Teacher
func (Teacher) TableName() string {
	return "teachers"
}

// Principal returns the auth snapshot for this account
func (t *Teacher) Principal() Principal {
	tenantID := t.TenantID
	return Principal{
		ID:           t.ID,
		Type:         PrincipalTypeTeacher,
		TenantID:     &tenantID,
		Email:        t.Email,
		Name:         t.Name,
		Role:         RoleTeacher,
		Permissions:  RolePermissions(RoleTeacher),
		TokenVersion: t.TokenVersion,
		Status:       t.Status,
	}
}
