package model

import (
	"time"

	"gorm.io/gorm"
)

// Course status values
const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
	CourseStatusArchived  = "archived"
)

// Course represents a sellable program offered by a tenant
type Course struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID     uint           `gorm:"not null;index;uniqueIndex:ux_courses_tenant_code" json:"tenant_id"`
	InstituteID  *uint          `gorm:"index" json:"institute_id,omitempty"`
	Title        string         `gorm:"not null" json:"title"`
	Code         string         `gorm:"not null;type:varchar(50);uniqueIndex:ux_courses_tenant_code" json:"code"` // unique per tenant
	Description  string         `gorm:"type:text" json:"description"`                                             // plain text, HTML stripped on write
	ThumbnailURL string         `gorm:"type:varchar(512)" json:"thumbnail_url"`
	Status       string         `gorm:"type:varchar(20);default:'draft'" json:"status"` // draft, published, archived
	PriceAmount  int64          `gorm:"default:0" json:"price_amount"`                  // minor units
	Currency     string         `gorm:"type:varchar(3);default:'INR'" json:"currency"`

	// Relationships
	Tenant          Tenant           `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	Institute       *Institute       `gorm:"foreignKey:InstituteID" json:"institute,omitempty"`
	Specializations []Specialization `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"specializations,omitempty"`
	Videos          []Video          `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"videos,omitempty"`
	Resources       []CourseResource `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Course
func (Course) TableName() string {
	return "courses"
}

// Specialization is a track within a course (e.g., "NEET Physics")
type Specialization struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID    uint           `gorm:"not null;index" json:"tenant_id"`
	CourseID    uint           `gorm:"not null;index;uniqueIndex:ux_specializations_course_code" json:"course_id"`
	Title       string         `gorm:"not null" json:"title"`
	Code        string         `gorm:"not null;type:varchar(50);uniqueIndex:ux_specializations_course_code" json:"code"` // unique per course
	Description string         `gorm:"type:text" json:"description"`
	Sequence    int            `gorm:"default:0" json:"sequence"` // display order
	Status      string         `gorm:"type:varchar(20);default:'active'" json:"status"`

	// Relationships
	Course Course  `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Videos []Video `gorm:"foreignKey:SpecializationID" json:"videos,omitempty"`
}

// TableName specifies the table name for Specialization
func (Specialization) TableName() string {
	return "specializations"
}
