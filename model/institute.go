package model

import (
	"time"

	"gorm.io/gorm"
)

// Institute represents a campus or branch belonging to a tenant
type Institute struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID  uint           `gorm:"not null;index;uniqueIndex:ux_institutes_tenant_code" json:"tenant_id"`
	Name      string         `gorm:"not null" json:"name"`
	Code      string         `gorm:"not null;type:varchar(50);uniqueIndex:ux_institutes_tenant_code" json:"code"` // unique per tenant
	Address   string         `gorm:"type:text" json:"address"`
	Status    string         `gorm:"type:varchar(20);default:'active'" json:"status"`

	// Relationships
	Tenant   Tenant    `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	Teachers []Teacher `gorm:"foreignKey:InstituteID" json:"-"`
	Students []Student `gorm:"foreignKey:InstituteID" json:"-"`
}

// TableName specifies the table name for Institute
func (Institute) TableName() string {
	return "institutes"
}
