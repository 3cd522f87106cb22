package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/stream"
)

func TestStreamCollector(t *testing.T) {
	stats := stream.Stats{
		Status:           models.StatusConnected,
		MessagesReceived: 12,
		TradesAccepted:   40,
		TradesDropped:    2,
		Reconnects:       1,
	}
	c := NewStreamCollector(func() stream.Stats { return stats })

	expected := `
# HELP footprint_stream_trades_accepted_total Trades accepted from the feed.
# TYPE footprint_stream_trades_accepted_total counter
footprint_stream_trades_accepted_total 40
# HELP footprint_stream_trades_dropped_total Trades dropped as malformed.
# TYPE footprint_stream_trades_dropped_total counter
footprint_stream_trades_dropped_total 2
# HELP footprint_stream_status Current connection status, 1 for the active one.
# TYPE footprint_stream_status gauge
footprint_stream_status{status="connected"} 1
footprint_stream_status{status="connecting"} 0
footprint_stream_status{status="disconnected"} 0
footprint_stream_status{status="error"} 0
footprint_stream_status{status="reconnecting"} 0
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"footprint_stream_trades_accepted_total",
		"footprint_stream_trades_dropped_total",
		"footprint_stream_status",
	)
	if err != nil {
		t.Errorf("Unexpected metrics: %v", err)
	}

	if got := testutil.CollectAndCount(c); got != 14 {
		t.Errorf("Expected 14 series, got %d", got)
	}
}

func TestRenderer(t *testing.T) {
	r := NewRenderer()
	r.ObserveRender(2*time.Millisecond, nil)
	r.ObserveRender(3*time.Millisecond, errors.New("boom"))
	r.ObserveRender(time.Millisecond, nil)

	if got := testutil.ToFloat64(r.errors); got != 1 {
		t.Errorf("Expected 1 render error, got %v", got)
	}
	if got := testutil.CollectAndCount(r, "footprint_render_frame_duration_seconds"); got != 1 {
		t.Errorf("Expected one histogram, got %d", got)
	}
}

func TestHandler(t *testing.T) {
	reg, err := NewRegistry(NewRenderer(), NewStreamCollector(func() stream.Stats { return stream.Stats{} }))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"footprint_render_errors_total", "footprint_stream_messages_received_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected %s in the exposition", name)
		}
	}
}
