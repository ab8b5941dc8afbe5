package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/cityclips/internal/config"
	"github.com/user/cityclips/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// MySQLStore implements Store interface using MySQL database
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore creates a new MySQL store instance
func NewMySQLStore(cfg *config.DBConfig) (*MySQLStore, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate tables
	if err := db.AutoMigrate(&model.User{}, &model.Video{}, &model.Like{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// CreateUser inserts a new user. Returns ErrDuplicateUser when the username
// or email is already taken.
func (s *MySQLStore) CreateUser(ctx context.Context, user *model.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by primary key
func (s *MySQLStore) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (s *MySQLStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

// UpdateUserCity changes the user's city and rewrites the denormalized city
// column on all of that user's videos. Both updates run in one transaction so
// the "video city == owner city" invariant never observably breaks.
func (s *MySQLStore) UpdateUserCity(ctx context.Context, userID uint, city string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).Where("id = ?", userID).Update("city", city)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Distinguish "no such user" from "city unchanged".
			var count int64
			if err := tx.Model(&model.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrUserNotFound
			}
		}
		return tx.Model(&model.Video{}).Where("user_id = ?", userID).Update("city", city).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update user city: %w", err)
	}
	return nil
}

// GetUserStats returns the user's video count and total likes received
func (s *MySQLStore) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	var stats UserStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.Video{}).Where("user_id = ?", userID).Count(&stats.VideoCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count user videos: %w", err)
	}

	err := db.Model(&model.Like{}).
		Joins("JOIN videos ON videos.id = likes.video_id").
		Where("videos.user_id = ?", userID).
		Count(&stats.TotalLikes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count user likes: %w", err)
	}

	return &stats, nil
}

// CreateVideo inserts a video row
func (s *MySQLStore) CreateVideo(ctx context.Context, video *model.Video) error {
	if err := s.db.WithContext(ctx).Create(video).Error; err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// GetVideoByID retrieves a video by primary key
func (s *MySQLStore) GetVideoByID(ctx context.Context, id uint) (*model.Video, error) {
	var video model.Video
	if err := s.db.WithContext(ctx).First(&video, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video by id: %w", err)
	}
	return &video, nil
}

// DeleteVideo removes the video row and its like rows in one transaction
func (s *MySQLStore) DeleteVideo(ctx context.Context, videoID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Video{}, videoID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVideoNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVideoNotFound) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return nil
}

// CountVideos returns the total count of videos
func (s *MySQLStore) CountVideos(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Video{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return count, nil
}

// feedSelect annotates each video row with the owner's username, the live
// like count, and whether the viewer has liked it.
const feedSelect = `videos.id, videos.filename, videos.original_name, videos.duration,
videos.file_size, videos.city, videos.created_at, users.username,
(SELECT COUNT(*) FROM likes WHERE likes.video_id = videos.id) AS like_count,
EXISTS(SELECT 1 FROM likes WHERE likes.video_id = videos.id AND likes.user_id = ?) AS user_liked`

func (s *MySQLStore) feedPage(ctx context.Context, viewerID uint, limit, offset int, cond string, args ...interface{}) ([]*FeedItem, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&model.Video{}).Where(cond, args...).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count feed videos: %w", err)
	}

	var items []*FeedItem
	err := db.Model(&model.Video{}).
		Select(feedSelect, viewerID).
		Joins("JOIN users ON users.id = videos.user_id").
		Where(cond, args...).
		// id DESC breaks same-second timestamp ties so pages are deterministic.
		Order("videos.created_at DESC, videos.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query feed videos: %w", err)
	}

	return items, total, nil
}

// MyVideos returns one page of the viewer's own uploads
func (s *MySQLStore) MyVideos(ctx context.Context, viewerID uint, limit, offset int) ([]*FeedItem, int64, error) {
	return s.feedPage(ctx, viewerID, limit, offset, "videos.user_id = ?", viewerID)
}

// ExploreVideos returns one page of other residents' uploads in the given city
func (s *MySQLStore) ExploreVideos(ctx context.Context, viewerID uint, city string, limit, offset int) ([]*FeedItem, int64, error) {
	return s.feedPage(ctx, viewerID, limit, offset, "videos.city = ? AND videos.user_id != ?", city, viewerID)
}

// ToggleLike flips the like state for (userID, videoID). Each statement runs
// in autocommit so no gap lock is held across the check and the write: the
// like branch is a conditional insert whose duplicate-key outcome (a
// concurrent double-submission) is absorbed by ON CONFLICT DO NOTHING and
// still reported as a successful like. The count runs after the write, so it
// reflects the committed state including a concurrently landed row.
func (s *MySQLStore) ToggleLike(ctx context.Context, userID, videoID uint) (bool, int64, error) {
	db := s.db.WithContext(ctx)

	var exists int64
	if err := db.Model(&model.Video{}).Where("id = ?", videoID).Count(&exists).Error; err != nil {
		return false, 0, fmt.Errorf("failed to toggle like: %w", err)
	}
	if exists == 0 {
		return false, 0, ErrVideoNotFound
	}

	var liked bool
	var existing int64
	if err := db.Model(&model.Like{}).Where("user_id = ? AND video_id = ?", userID, videoID).Count(&existing).Error; err != nil {
		return false, 0, fmt.Errorf("failed to toggle like: %w", err)
	}

	if existing > 0 {
		// Unlike. A concurrent unlike may have removed the row already;
		// zero rows affected still means "not liked now".
		res := db.Where("user_id = ? AND video_id = ?", userID, videoID).Delete(&model.Like{})
		if res.Error != nil {
			return false, 0, fmt.Errorf("failed to toggle like: %w", res.Error)
		}
		liked = false
	} else {
		// Like. When a concurrent duplicate submission wins the insert, the
		// unique (user_id, video_id) key makes this a zero-row no-op, which
		// is still a successful like, never an error.
		like := model.Like{UserID: userID, VideoID: videoID}
		ins := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
			DoNothing: true,
		}).Create(&like)
		if ins.Error != nil {
			return false, 0, fmt.Errorf("failed to toggle like: %w", ins.Error)
		}
		liked = true
	}

	var count int64
	if err := db.Model(&model.Like{}).Where("video_id = ?", videoID).Count(&count).Error; err != nil {
		return false, 0, fmt.Errorf("failed to toggle like: %w", err)
	}

	return liked, count, nil
}

// Ping checks database connectivity
func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *MySQLStore) DB() *gorm.DB {
	return s.db
}
