package model

import (
	"time"

	"gorm.io/gorm"
)

// Video status values
const (
	VideoStatusProcessing = "processing"
	VideoStatusReady      = "ready"
	VideoStatusBlocked    = "blocked"
)

// Video is a lecture asset hosted with the video provider. Playback requires
// a short-lived signed token minted per principal (services/playback).
type Video struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID         uint           `gorm:"not null;index" json:"tenant_id"`
	CourseID         uint           `gorm:"not null;index" json:"course_id"`
	SpecializationID *uint          `gorm:"index" json:"specialization_id,omitempty"`
	Title            string         `gorm:"not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	ProviderAssetID  string         `gorm:"not null;type:varchar(100);index" json:"provider_asset_id"` // CDN/provider handle
	DurationSeconds  int            `gorm:"default:0" json:"duration_seconds"`
	Sequence         int            `gorm:"default:0" json:"sequence"`
	Status           string         `gorm:"type:varchar(20);default:'processing'" json:"status"` // processing, ready, blocked

	// Relationships
	Tenant         Tenant          `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	Course         Course          `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Specialization *Specialization `gorm:"foreignKey:SpecializationID" json:"specialization,omitempty"`
}

// TableName specifies the table name for Video
func (Video) TableName() string {
	return "videos"
}

// IsPlayable reports whether playback tokens may be minted for this video
func (v *Video) IsPlayable() bool {
	return v.Status == VideoStatusReady
}
