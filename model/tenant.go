package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tenant status values
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Tenant is the isolation boundary partitioning data across customer
// organizations. Every domain row except platform-global system users
// hangs off a tenant.
type Tenant struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Slug         string         `gorm:"uniqueIndex;not null;type:varchar(100)" json:"slug"` // e.g., "sunrise-academy"
	ContactEmail string         `gorm:"type:varchar(255)" json:"contact_email"`
	Status       string         `gorm:"type:varchar(20);default:'active'" json:"status"` // active, suspended
	Settings     datatypes.JSON `gorm:"type:jsonb" json:"settings,omitempty"`             // branding, locale, feature toggles

	// Relationships
	Institutes []Institute `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"institutes,omitempty"`
	Teachers   []Teacher   `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	Students   []Student   `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	Courses    []Course    `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Tenant
func (Tenant) TableName() string {
	return "tenants"
}

// IsActive reports whether the tenant may serve traffic
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
