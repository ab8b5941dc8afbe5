package store

import (
	"context"
	"errors"
	"time"

	"github.com/user/cityclips/internal/model"
)

// Sentinel errors returned by Store implementations. Handlers map these to
// HTTP statuses; anything else is an internal failure.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrVideoNotFound = errors.New("video not found")
	ErrDuplicateUser = errors.New("username or email already taken")
)

// FeedItem is one row of a paginated feed: a video joined with its owner's
// username and annotated with the live like count plus the requesting
// viewer's own like state. VideoURL is filled in by the HTTP layer.
type FeedItem struct {
	ID           uint      `gorm:"column:id" json:"id"`
	Filename     string    `gorm:"column:filename" json:"filename"`
	OriginalName string    `gorm:"column:original_name" json:"original_name"`
	Duration     float64   `gorm:"column:duration" json:"duration"`
	FileSize     int64     `gorm:"column:file_size" json:"file_size"`
	City         string    `gorm:"column:city" json:"city"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	Username     string    `gorm:"column:username" json:"username"`
	LikeCount    int64     `gorm:"column:like_count" json:"like_count"`
	UserLiked    bool      `gorm:"column:user_liked" json:"user_liked"`
	VideoURL     string    `gorm:"-" json:"videoUrl"`
}

// UserStats aggregates a user's public profile numbers.
type UserStats struct {
	VideoCount int64 `json:"videoCount"`
	TotalLikes int64 `json:"totalLikes"`
}

// Store defines the interface for data persistence operations
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id uint) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdateUserCity changes a user's city and fans the new value out to all
	// of that user's videos in the same transaction.
	UpdateUserCity(ctx context.Context, userID uint, city string) error
	GetUserStats(ctx context.Context, userID uint) (*UserStats, error)

	// Video operations
	CreateVideo(ctx context.Context, video *model.Video) error
	GetVideoByID(ctx context.Context, id uint) (*model.Video, error)
	// DeleteVideo removes the video row and its likes atomically. The blob is
	// the caller's responsibility (row deletion is the authoritative action).
	DeleteVideo(ctx context.Context, videoID uint) error
	CountVideos(ctx context.Context) (int64, error)

	// Feed operations. Both return one page of annotated rows plus the total
	// row count for the scope, ordered created_at DESC with id DESC tiebreak.
	MyVideos(ctx context.Context, viewerID uint, limit, offset int) ([]*FeedItem, int64, error)
	ExploreVideos(ctx context.Context, viewerID uint, city string, limit, offset int) ([]*FeedItem, int64, error)

	// ToggleLike flips the like state for (userID, videoID) and returns the
	// new state with the post-operation live count. A concurrent duplicate
	// like is absorbed as an idempotent success, never an error.
	ToggleLike(ctx context.Context, userID, videoID uint) (liked bool, likeCount int64, err error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
