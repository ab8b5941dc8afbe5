package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Metrics for Prometheus
var (
	videosTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cityclips_videos_total",
		Help: "Total number of videos in database",
	})

	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cityclips_uploads_total",
		Help: "Total number of upload attempts",
	}, []string{"status"})

	likesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cityclips_likes_total",
		Help: "Total number of like toggle operations",
	}, []string{"action"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cityclips_errors_total",
		Help: "Total number of errors",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(videosTotal)
	prometheus.MustRegister(uploadsTotal)
	prometheus.MustRegister(likesTotal)
	prometheus.MustRegister(errorsTotal)
}

// recordError records an error metric
func recordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

// refreshVideoCount updates the videos_total gauge after uploads and deletes
func (s *Server) refreshVideoCount(ctx context.Context) {
	count, err := s.store.CountVideos(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count videos for metrics")
		return
	}
	videosTotal.Set(float64(count))
}
