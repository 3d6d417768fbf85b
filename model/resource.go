package model

import (
	"time"

	"gorm.io/gorm"
)

// CourseResource is an uploaded study material (PDF) stored in object
// storage and attached to a course.
type CourseResource struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID    uint           `gorm:"not null;index" json:"tenant_id"`
	CourseID    uint           `gorm:"not null;index" json:"course_id"`
	Title       string         `gorm:"not null" json:"title"`
	ObjectKey   string         `gorm:"not null;type:varchar(512)" json:"-"` // Spaces key, never exposed raw
	PublicURL   string         `gorm:"type:varchar(512)" json:"public_url"`
	FileSize    int64          `gorm:"default:0" json:"file_size"`
	PageCount   int            `gorm:"default:0" json:"page_count"`
	ContentType string         `gorm:"type:varchar(100);default:'application/pdf'" json:"content_type"`

	// Relationships
	Tenant Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName specifies the table name for CourseResource
func (CourseResource) TableName() string {
	return "course_resources"
}
