package model

import (
	"time"
)

// Video represents an uploaded clip. Filename is the opaque stored name,
// OriginalName the client-supplied one (display only). City is a denormalized
// copy of the owner's city at upload time, kept in sync by the profile update
// fan-out so explore queries stay single-table on city.
type Video struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	Filename     string    `gorm:"size:255;not null" json:"filename"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	FilePath     string    `gorm:"size:500;not null" json:"-"`
	Duration     float64   `gorm:"not null" json:"duration"`
	FileSize     int64     `gorm:"not null" json:"file_size"`
	City         string    `gorm:"index;size:255;not null" json:"city"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for Video
func (Video) TableName() string {
	return "videos"
}
