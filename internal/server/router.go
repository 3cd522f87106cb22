// Package server is the HTTP API the embedding UI talks to.
package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/internal/health"
	"github.com/navid-fn/footprint/internal/interaction"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/settings"
	"github.com/navid-fn/footprint/internal/stream"
)

// Chart is the chart controller as seen by the API.
type Chart interface {
	WriteRaster(w io.Writer) error
	WriteOverlay(w io.Writer) error
	Resize(width, height int, pixelRatio float64) error
	Size() (int, int, float64)

	Candles() []models.FootprintCandle
	VisibleCandles() []models.FootprintCandle

	State() settings.State
	UpdateSettings(patch models.SettingsPatch) error
	SetTool(tool models.Tool) error

	View() models.ViewState
	SetView(v models.ViewState) error
	ResetView() error

	Drawings() []models.Drawing
	DeleteDrawing(id string) error

	HandlePointer(ev interaction.PointerEvent) error
	HandleWheel(ev interaction.WheelEvent) error
	HandleKey(ev interaction.KeyEvent) error
}

// Config wires the router. Stats, Health and Metrics are optional.
type Config struct {
	Chart   Chart
	Stats   func() stream.Stats
	Health  *health.Monitor
	Metrics http.Handler
	Logger  *logrus.Logger
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	system := NewSystemHandler(cfg.Health, cfg.Stats, cfg.Metrics)
	router.GET("/health", system.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", system.Metrics)
	}

	api := router.Group("/v1/")
	chart := NewChartHandler(cfg.Chart, cfg.Logger)
	registerChartRoutes(api, chart)
	registerInputRoutes(api, chart)
	api.GET("/stream/stats", system.StreamStats)

	return router
}

func registerChartRoutes(router *gin.RouterGroup, h *ChartHandler) {
	chart := router.Group("/chart")
	{
		chart.GET("/raster.png", h.Raster)
		chart.GET("/overlay.svg", h.Overlay)
		chart.POST("/resize", h.Resize)
	}

	router.GET("/candles", h.GetCandles)

	router.GET("/settings", h.GetSettings)
	router.PATCH("/settings", h.PatchSettings)
	router.PUT("/tool", h.SetTool)

	view := router.Group("/view")
	{
		view.GET("", h.GetView)
		view.PUT("", h.PutView)
		view.DELETE("", h.ResetView)
	}

	drawings := router.Group("/drawings")
	{
		drawings.GET("", h.GetDrawings)
		drawings.DELETE("/:id", h.DeleteDrawing)
	}
}

func registerInputRoutes(router *gin.RouterGroup, h *ChartHandler) {
	input := router.Group("/input")
	{
		input.POST("/pointer", h.Pointer)
		input.POST("/wheel", h.Wheel)
		input.POST("/key", h.Key)
	}
}

// requestLogger logs every request at debug, and failures at warn.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if logger == nil {
			return
		}
		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}
