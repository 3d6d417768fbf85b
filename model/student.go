package model

import (
	"time"

	"gorm.io/gorm"
)

// Student is a tenant-scoped learner account
type Student struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID     uint           `gorm:"not null;index;uniqueIndex:ux_students_tenant_email" json:"tenant_id"`
	InstituteID  *uint          `gorm:"index" json:"institute_id,omitempty"`
	Email        string         `gorm:"not null;type:varchar(255);uniqueIndex:ux_students_tenant_email" json:"email"` // unique per tenant
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	EnrollmentNo string         `gorm:"type:varchar(50);index" json:"enrollment_no"`
	Status       string         `gorm:"type:varchar(20);default:'active'" json:"status"` // active, disabled
	TokenVersion int            `gorm:"default:0" json:"-"`

	// Relationships
	Tenant    Tenant     `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	Institute *Institute `gorm:"foreignKey:InstituteID" json:"institute,omitempty"`
}

// TableName specifies the table name for Student
func (Student) TableName() string {
	return "students"
}

// Principal returns the auth snapshot for this account
func (s *Student) Principal() Principal {
	tenantID := s.TenantID
	return Principal{
		ID:           s.ID,
		Type:         PrincipalTypeStudent,
		TenantID:     &tenantID,
		Email:        s.Email,
		Name:         s.Name,
		Role:         RoleStudent,
		Permissions:  RolePermissions(RoleStudent),
		TokenVersion: s.TokenVersion,
		Status:       s.Status,
	}
}
