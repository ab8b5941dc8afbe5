package model

import (
	"time"
)

// Like is a join row expressing "this user likes this video". The composite
// unique index guarantees at most one row per (user, video) pair; its
// existence is the sole source of truth for liked state.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_video;not null" json:"user_id"`
	VideoID   uint      `gorm:"uniqueIndex:idx_user_video;not null" json:"video_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for Like
func (Like) TableName() string {
	return "likes"
}
