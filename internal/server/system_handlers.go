package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/footprint/internal/health"
	"github.com/navid-fn/footprint/internal/stream"
)

type SystemHandler struct {
	monitor *health.Monitor
	stats   func() stream.Stats
	metrics http.Handler
}

func NewSystemHandler(monitor *health.Monitor, stats func() stream.Stats, metrics http.Handler) *SystemHandler {
	return &SystemHandler{
		monitor: monitor,
		stats:   stats,
		metrics: metrics,
	}
}

// Health answers 503 only when a critical check fails; a degraded service
// still serves.
func (h *SystemHandler) Health(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy, "timestamp": time.Now().UTC()})
		return
	}
	overall := h.monitor.Overall()
	code := http.StatusOK
	if overall == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    overall,
		"checks":    h.monitor.Checks(),
		"timestamp": time.Now().UTC(),
	})
}

func (h *SystemHandler) Metrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

func (h *SystemHandler) StreamStats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade feed disabled"})
		return
	}
	c.JSON(http.StatusOK, h.stats())
}
