package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/cityclips/internal/auth"
	"github.com/user/cityclips/internal/blob"
	"github.com/user/cityclips/internal/config"
	"github.com/user/cityclips/internal/store"
)

// Server handles the HTTP API
type Server struct {
	cfg       *config.Config
	store     store.Store
	blobs     *blob.Store
	tokens    *auth.Manager
	engine    *gin.Engine
	server    *http.Server
	startTime time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, st store.Store, blobs *blob.Store, tokens *auth.Manager) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:       cfg,
		store:     st,
		blobs:     blobs,
		tokens:    tokens,
		engine:    gin.New(),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	r := s.engine
	r.Use(gin.Recovery(), requestLogger(), corsMiddleware())
	r.MaxMultipartMemory = 32 << 20

	// Uploaded blobs are served statically under the public prefix.
	r.Static(s.cfg.Upload.PublicPrefix, s.blobs.Dir())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register", s.handleRegister)
	r.POST("/auth/login", s.handleLogin)

	users := r.Group("/users", s.requireAuth())
	users.GET("/profile/:username", s.handleProfile)
	users.PUT("/profile", s.handleUpdateProfile)

	videos := r.Group("/videos", s.requireAuth())
	videos.POST("/upload", s.handleUpload)
	videos.GET("/my-videos", s.handleMyVideos)
	videos.GET("/explore", s.handleExplore)
	videos.POST("/:id/like", s.handleToggleLike)
	videos.DELETE("/:id", s.handleDeleteVideo)
}

// Handler returns the underlying HTTP handler (for tests)
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Upload.ReadTimeout,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth returns JSON with status, database connectivity, and uptime
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	dbStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("unhealthy: %v", err)
	}

	status := "healthy"
	code := http.StatusOK
	if dbStatus != "healthy" {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:   status,
		Database: dbStatus,
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
	})
}
