package server

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/internal/chart"
	"github.com/navid-fn/footprint/internal/interaction"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/settings"
)

type ChartHandler struct {
	chart  Chart
	logger *logrus.Logger
}

func NewChartHandler(c Chart, logger *logrus.Logger) *ChartHandler {
	return &ChartHandler{
		chart:  c,
		logger: logger,
	}
}

// fail maps controller errors to status codes.
func (h *ChartHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chart.ErrDrawingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chart.ErrDestroyed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, settings.ErrUnknownTheme), errors.Is(err, settings.ErrInvalid):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *ChartHandler) Raster(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.chart.WriteRaster(&buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *ChartHandler) Overlay(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.chart.WriteOverlay(&buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", buf.Bytes())
}

type resizeRequest struct {
	Width      int     `json:"width" binding:"required,min=1"`
	Height     int     `json:"height" binding:"required,min=1"`
	PixelRatio float64 `json:"pixel_ratio"`
}

// Resize is debounced by the controller; the response only acknowledges it.
func (h *ChartHandler) Resize(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PixelRatio <= 0 {
		req.PixelRatio = 1
	}
	if err := h.chart.Resize(req.Width, req.Height, req.PixelRatio); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, req)
}

func (h *ChartHandler) GetCandles(c *gin.Context) {
	if c.Query("visible") == "true" {
		c.JSON(http.StatusOK, h.chart.VisibleCandles())
		return
	}
	c.JSON(http.StatusOK, h.chart.Candles())
}

func (h *ChartHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.chart.State())
}

func (h *ChartHandler) PatchSettings(c *gin.Context) {
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.chart.UpdateSettings(patch); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.chart.State())
}

type toolRequest struct {
	Tool models.Tool `json:"tool" binding:"required"`
}

func (h *ChartHandler) SetTool(c *gin.Context) {
	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.chart.SetTool(req.Tool); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.chart.State())
}

func (h *ChartHandler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.chart.View())
}

func (h *ChartHandler) PutView(c *gin.Context) {
	var v models.ViewState
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.chart.SetView(v); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.chart.View())
}

func (h *ChartHandler) ResetView(c *gin.Context) {
	if err := h.chart.ResetView(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.chart.View())
}

func (h *ChartHandler) GetDrawings(c *gin.Context) {
	c.JSON(http.StatusOK, h.chart.Drawings())
}

func (h *ChartHandler) DeleteDrawing(c *gin.Context) {
	if err := h.chart.DeleteDrawing(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// inputResponse is what the UI needs after an input event to update its
// cursor and view without a second round trip.
type inputResponse struct {
	View models.ViewState `json:"view"`
}

func (h *ChartHandler) Pointer(c *gin.Context) {
	var ev interaction.PointerEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch ev.Kind {
	case interaction.PointerDown, interaction.PointerMove, interaction.PointerUp, interaction.PointerLeave:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown pointer kind " + string(ev.Kind)})
		return
	}
	if err := h.chart.HandlePointer(ev); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inputResponse{View: h.chart.View()})
}

func (h *ChartHandler) Wheel(c *gin.Context) {
	var ev interaction.WheelEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.chart.HandleWheel(ev); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inputResponse{View: h.chart.View()})
}

func (h *ChartHandler) Key(c *gin.Context) {
	var ev interaction.KeyEvent
	if err := c.ShouldBindJSON(&ev); err != nil || ev.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	if err := h.chart.HandleKey(ev); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inputResponse{View: h.chart.View()})
}
