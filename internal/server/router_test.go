package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/internal/chart"
	"github.com/navid-fn/footprint/internal/health"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/render"
	"github.com/navid-fn/footprint/internal/settings"
	"github.com/navid-fn/footprint/internal/stream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newChart(t *testing.T) *chart.Controller {
	t.Helper()
	raster, err := render.NewChartSurface(render.FormatPNG, 560, 424, 1)
	if err != nil {
		t.Fatalf("NewChartSurface failed: %v", err)
	}
	overlay, err := render.NewChartSurface(render.FormatSVG, 560, 424, 1)
	if err != nil {
		t.Fatalf("NewChartSurface failed: %v", err)
	}
	state := settings.NewStore(settings.DefaultState(), settings.NewThemeRegistry(), nil, quietLogger())
	c, err := chart.New(chart.Options{ChartID: "chart-1", InitialViewCount: 10, ResizeDebounce: time.Millisecond}, nil, state, raster, overlay, quietLogger())
	if err != nil {
		t.Fatalf("chart.New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Destroy() })

	var trades []models.Trade
	for i := 0; i < 30; i++ {
		trades = append(trades, models.Trade{TimestampMs: int64(i)*60_000 + 500, Price: 1.1 + float64(i%3)*0.0001, Size: 1, Side: models.SideBuy})
	}
	if err := c.UpdateData(trades); err != nil {
		t.Fatalf("UpdateData failed: %v", err)
	}
	return c
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChartImages(t *testing.T) {
	router := NewRouter(&Config{Chart: newChart(t), Logger: quietLogger()})

	png := do(router, http.MethodGet, "/v1/chart/raster.png", "")
	if png.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", png.Code)
	}
	if ct := png.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(png.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("Expected a PNG body")
	}

	svg := do(router, http.MethodGet, "/v1/chart/overlay.svg", "")
	if svg.Code != http.StatusOK || !strings.Contains(svg.Body.String(), "<svg") {
		t.Errorf("Expected an SVG body, got %d", svg.Code)
	}
}

func TestResize(t *testing.T) {
	c := newChart(t)
	router := NewRouter(&Config{Chart: c, Logger: quietLogger()})

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{name: "valid", body: `{"width":800,"height":600,"pixel_ratio":2}`, expected: http.StatusAccepted},
		{name: "missing height", body: `{"width":800}`, expected: http.StatusBadRequest},
		{name: "zero width", body: `{"width":0,"height":600}`, expected: http.StatusBadRequest},
		{name: "not json", body: `size please`, expected: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/v1/chart/resize", tt.body)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d: %s", tt.expected, rec.Code, rec.Body.String())
			}
		})
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if w, h, _ := c.Size(); w == 800 && h == 600 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected the chart resized to 800x600")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCandles(t *testing.T) {
	router := NewRouter(&Config{Chart: newChart(t), Logger: quietLogger()})

	tests := []struct {
		path     string
		expected int
	}{
		{path: "/v1/candles", expected: 30},
		{path: "/v1/candles?visible=true", expected: 8},
	}
	for _, tt := range tests {
		rec := do(router, http.MethodGet, tt.path, "")
		var candles []models.FootprintCandle
		if err := json.Unmarshal(rec.Body.Bytes(), &candles); err != nil {
			t.Fatalf("%s: failed to decode: %v", tt.path, err)
		}
		if len(candles) != tt.expected {
			t.Errorf("%s: expected %d candles, got %d", tt.path, tt.expected, len(candles))
		}
	}
}

func TestSettingsAndTool(t *testing.T) {
	router := NewRouter(&Config{Chart: newChart(t), Logger: quietLogger()})

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
	}{
		{name: "chart type", method: http.MethodPatch, path: "/v1/settings", body: `{"chart_type":"delta","show_heatmap":true}`, expected: http.StatusOK},
		{name: "zero timeframe", method: http.MethodPatch, path: "/v1/settings", body: `{"timeframe_minutes":0}`, expected: http.StatusBadRequest},
		{name: "unknown theme", method: http.MethodPatch, path: "/v1/settings", body: `{"active_theme_id":"nope"}`, expected: http.StatusBadRequest},
		{name: "known theme", method: http.MethodPatch, path: "/v1/settings", body: `{"active_theme_id":"light"}`, expected: http.StatusOK},
		{name: "ray tool", method: http.MethodPut, path: "/v1/tool", body: `{"tool":"ray"}`, expected: http.StatusOK},
		{name: "unknown tool", method: http.MethodPut, path: "/v1/tool", body: `{"tool":"laser"}`, expected: http.StatusBadRequest},
		{name: "missing tool", method: http.MethodPut, path: "/v1/tool", body: `{}`, expected: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, tt.body)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d: %s", tt.expected, rec.Code, rec.Body.String())
			}
		})
	}

	var state settings.State
	rec := do(router, http.MethodGet, "/v1/settings", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if state.Settings.ChartType != models.ChartDelta || !state.Settings.ShowHeatmap {
		t.Errorf("Expected delta with heatmap, got %+v", state.Settings)
	}
	if state.Settings.ActiveThemeID != "light" {
		t.Errorf("Expected theme light, got %s", state.Settings.ActiveThemeID)
	}
	if state.Tool != models.ToolRay {
		t.Errorf("Expected tool ray, got %s", state.Tool)
	}
}

func TestViewRoutes(t *testing.T) {
	router := NewRouter(&Config{Chart: newChart(t), Logger: quietLogger()})

	var v models.ViewState
	rec := do(router, http.MethodPut, "/v1/view", `{"view_offset":3,"view_count":2,"y_domain":[1.1,1.2]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	if v.ViewOffset != 3 || v.ViewCount != 5 || v.YDomain == nil {
		t.Errorf("Expected {3 5 [1.1 1.2]}, got %+v", v)
	}

	rec = do(router, http.MethodDelete, "/v1/view", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	if v.ViewOffset != 22 || v.ViewCount != 10 || v.YDomain != nil {
		t.Errorf("Expected the default view {22 10 nil}, got %+v", v)
	}
}

func TestInputRoutes(t *testing.T) {
	router := NewRouter(&Config{Chart: newChart(t), Logger: quietLogger()})

	if rec := do(router, http.MethodPost, "/v1/input/pointer", `{"kind":"down","x":250,"y":200}`); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	rec := do(router, http.MethodPost, "/v1/input/pointer", `{"kind":"move","x":300,"y":200}`)
	var resp inputResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.View.ViewOffset != 21 {
		t.Errorf("Expected offset 21 after panning, got %v", resp.View.ViewOffset)
	}
	do(router, http.MethodPost, "/v1/input/pointer", `{"kind":"up","x":300,"y":200}`)

	tests := []struct {
		name     string
		path     string
		body     string
		expected int
	}{
		{name: "bad kind", path: "/v1/input/pointer", body: `{"kind":"hover","x":1,"y":1}`, expected: http.StatusBadRequest},
		{name: "wheel zoom", path: "/v1/input/wheel", body: `{"x":250,"y":200,"delta_y":-100,"ctrl":true}`, expected: http.StatusOK},
		{name: "escape", path: "/v1/input/key", body: `{"key":"Escape"}`, expected: http.StatusOK},
		{name: "empty key", path: "/v1/input/key", body: `{}`, expected: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d: %s", tt.expected, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDrawingRoutes(t *testing.T) {
	c := newChart(t)
	router := NewRouter(&Config{Chart: c, Logger: quietLogger()})

	if err := c.LoadDrawings([]models.Drawing{{ID: "d1", Type: models.DrawingHorizontal, Visible: true, Points: []models.DrawingPoint{{Price: 1.1}}}}); err != nil {
		t.Fatalf("LoadDrawings failed: %v", err)
	}

	var ds []models.Drawing
	rec := do(router, http.MethodGet, "/v1/drawings", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &ds); err != nil {
		t.Fatalf("Failed to decode drawings: %v", err)
	}
	if len(ds) != 1 || ds[0].ChartID != "chart-1" {
		t.Fatalf("Expected one drawing of chart-1, got %+v", ds)
	}

	if rec := do(router, http.MethodDelete, "/v1/drawings/d1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec := do(router, http.MethodDelete, "/v1/drawings/d1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestSystemRoutes(t *testing.T) {
	monitor := health.NewMonitor(quietLogger(), time.Hour)
	monitor.AddCheck("stream", true, func(ctx context.Context) error { return errors.New("feed in error") })
	monitor.RunChecks(context.Background())

	stats := func() stream.Stats { return stream.Stats{Status: models.StatusError, TradesAccepted: 7} }
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "footprint_render_errors_total 0\n")
	})
	router := NewRouter(&Config{Chart: newChart(t), Stats: stats, Health: monitor, Metrics: metrics, Logger: quietLogger()})

	if rec := do(router, http.MethodGet, "/health", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}

	rec := do(router, http.MethodGet, "/v1/stream/stats", "")
	var got stream.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if got.TradesAccepted != 7 || got.Status != models.StatusError {
		t.Errorf("Unexpected stats %+v", got)
	}

	if rec := do(router, http.MethodGet, "/metrics", ""); !strings.Contains(rec.Body.String(), "footprint_render_errors_total") {
		t.Errorf("Expected the metrics body, got %q", rec.Body.String())
	}

	bare := NewRouter(&Config{Chart: newChart(t), Logger: quietLogger()})
	if rec := do(bare, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 without a monitor, got %d", rec.Code)
	}
	if rec := do(bare, http.MethodGet, "/v1/stream/stats", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with the feed disabled, got %d", rec.Code)
	}
}

func TestDestroyedChart(t *testing.T) {
	c := newChart(t)
	router := NewRouter(&Config{Chart: c, Logger: quietLogger()})
	if err := c.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if rec := do(router, http.MethodGet, "/v1/chart/raster.png", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}
