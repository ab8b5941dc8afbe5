package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/user/cityclips/internal/blob"
	"github.com/user/cityclips/internal/model"
	"github.com/user/cityclips/internal/store"
)

// uploadedVideo is the response body for a successful upload
type uploadedVideo struct {
	ID           uint      `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Duration     float64   `json:"duration"`
	FileSize     int64     `json:"fileSize"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// handleUpload validates an incoming clip, writes the blob, then records the
// row. All rejections happen before the blob write; a failed insert removes
// the blob again so no rejection path leaves an orphaned file.
func (s *Server) handleUpload(c *gin.Context) {
	user := currentUser(c)

	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file uploaded"})
		return
	}

	if !strings.HasPrefix(file.Header.Get("Content-Type"), "video/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only video files are allowed"})
		return
	}

	if file.Size > s.cfg.Upload.MaxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Video file too large"})
		return
	}

	duration, err := strconv.ParseFloat(c.PostForm("duration"), 64)
	if err != nil || duration > s.cfg.Upload.MaxDuration {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Video must be %g seconds or less", s.cfg.Upload.MaxDuration)})
		return
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		recordError("filesystem")
		uploadsTotal.WithLabelValues("failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload video"})
		return
	}
	defer src.Close()

	filename := blob.NewFilename(file.Filename)
	path, size, err := s.blobs.Save(filename, src)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save video blob")
		recordError("filesystem")
		uploadsTotal.WithLabelValues("failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload video"})
		return
	}

	video := &model.Video{
		UserID:       user.ID,
		Filename:     filename,
		OriginalName: file.Filename,
		FilePath:     path,
		Duration:     duration,
		FileSize:     size,
		City:         user.City,
	}

	if err := s.store.CreateVideo(c.Request.Context(), video); err != nil {
		// The blob was already written; remove it so the failed insert leaves
		// no orphaned file behind.
		if rmErr := s.blobs.Remove(filename); rmErr != nil {
			log.Error().Err(rmErr).Str("filename", filename).Msg("Failed to remove orphaned blob")
		}
		log.Error().Err(err).Msg("Failed to save video metadata")
		recordError("storage")
		uploadsTotal.WithLabelValues("failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload video"})
		return
	}

	uploadsTotal.WithLabelValues("success").Inc()
	s.refreshVideoCount(c.Request.Context())

	c.JSON(http.StatusCreated, gin.H{
		"message": "Video uploaded successfully",
		"video": uploadedVideo{
			ID:           video.ID,
			Filename:     video.Filename,
			OriginalName: video.OriginalName,
			Duration:     video.Duration,
			FileSize:     video.FileSize,
			UploadedAt:   video.CreatedAt,
		},
	})
}

// videoURL derives the static serving path for a stored filename
func (s *Server) videoURL(filename string) string {
	return fmt.Sprintf("%s/%s", s.cfg.Upload.PublicPrefix, filename)
}

func (s *Server) respondFeed(c *gin.Context, items []*store.FeedItem, page, limit int, total int64) {
	if items == nil {
		items = []*store.FeedItem{}
	}
	for _, item := range items {
		item.VideoURL = s.videoURL(item.Filename)
	}

	c.JSON(http.StatusOK, gin.H{
		"videos":     items,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) handleMyVideos(c *gin.Context) {
	user := currentUser(c)
	page, limit := pageParams(c)

	items, total, err := s.store.MyVideos(c.Request.Context(), user.ID, limit, (page-1)*limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch user videos")
		recordError("storage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch videos"})
		return
	}

	s.respondFeed(c, items, page, limit, total)
}

func (s *Server) handleExplore(c *gin.Context) {
	user := currentUser(c)
	page, limit := pageParams(c)

	items, total, err := s.store.ExploreVideos(c.Request.Context(), user.ID, user.City, limit, (page-1)*limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch explore videos")
		recordError("storage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch videos"})
		return
	}

	s.respondFeed(c, items, page, limit, total)
}

func (s *Server) handleToggleLike(c *gin.Context) {
	user := currentUser(c)

	videoID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}

	liked, likeCount, err := s.store.ToggleLike(c.Request.Context(), user.ID, uint(videoID))
	if err != nil {
		if errors.Is(err, store.ErrVideoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		log.Error().Err(err).Msg("Failed to toggle like")
		recordError("storage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle like"})
		return
	}

	message := "Video unliked"
	action := "unlike"
	if liked {
		message = "Video liked"
		action = "like"
	}
	likesTotal.WithLabelValues(action).Inc()

	c.JSON(http.StatusOK, gin.H{
		"message":   message,
		"liked":     liked,
		"likeCount": likeCount,
	})
}

// handleDeleteVideo removes the row first, then best-effort deletes the blob.
// The row deletion is authoritative; an orphaned blob is only logged.
func (s *Server) handleDeleteVideo(c *gin.Context) {
	user := currentUser(c)

	videoID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}

	video, err := s.store.GetVideoByID(c.Request.Context(), uint(videoID))
	if err != nil {
		if errors.Is(err, store.ErrVideoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		log.Error().Err(err).Msg("Failed to fetch video")
		recordError("storage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete video"})
		return
	}

	if video.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own videos"})
		return
	}

	if err := s.store.DeleteVideo(c.Request.Context(), video.ID); err != nil {
		if errors.Is(err, store.ErrVideoNotFound) {
			// The row vanished between the ownership check and the delete.
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		log.Error().Err(err).Msg("Failed to delete video")
		recordError("storage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete video"})
		return
	}

	if err := s.blobs.Remove(video.Filename); err != nil {
		log.Error().Err(err).Str("filename", video.Filename).Msg("Failed to delete video blob")
		recordError("filesystem")
	}

	s.refreshVideoCount(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{"message": "Video deleted successfully"})
}
