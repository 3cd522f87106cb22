// Package metrics exposes the feed and renderer counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/stream"
)

const namespace = "footprint"

var statuses = []models.ConnectionStatus{
	models.StatusDisconnected,
	models.StatusConnecting,
	models.StatusConnected,
	models.StatusReconnecting,
	models.StatusError,
}

// StreamCollector reads a stream.Stats snapshot on every scrape.
type StreamCollector struct {
	stats func() stream.Stats

	messages   *prometheus.Desc
	accepted   *prometheus.Desc
	dropped    *prometheus.Desc
	batches    *prometheus.Desc
	gaps       *prometheus.Desc
	outOfOrder *prometheus.Desc
	attempts   *prometheus.Desc
	reconnects *prometheus.Desc
	timeouts   *prometheus.Desc
	status     *prometheus.Desc
}

// NewStreamCollector creates a collector over stats, usually
// stream.Client.Stats or stream.KafkaSource.Stats.
func NewStreamCollector(stats func() stream.Stats) *StreamCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "stream", name), help, labels, nil)
	}
	return &StreamCollector{
		stats:      stats,
		messages:   desc("messages_received_total", "Messages received from the trade feed."),
		accepted:   desc("trades_accepted_total", "Trades accepted from the feed."),
		dropped:    desc("trades_dropped_total", "Trades dropped as malformed."),
		batches:    desc("batches_delivered_total", "Trade batches delivered to the chart."),
		gaps:       desc("sequence_gaps_total", "Sequence numbers missing from the feed."),
		outOfOrder: desc("out_of_order_total", "Trades received with an older sequence number."),
		attempts:   desc("reconnect_attempts_total", "Reconnect attempts."),
		reconnects: desc("reconnects_total", "Successful reconnects."),
		timeouts:   desc("heartbeat_timeouts_total", "Connections dropped for a missing pong."),
		status:     desc("status", "Current connection status, 1 for the active one.", "status"),
	}
}

func (c *StreamCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messages
	ch <- c.accepted
	ch <- c.dropped
	ch <- c.batches
	ch <- c.gaps
	ch <- c.outOfOrder
	ch <- c.attempts
	ch <- c.reconnects
	ch <- c.timeouts
	ch <- c.status
}

func (c *StreamCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.messages, s.MessagesReceived)
	counter(c.accepted, s.TradesAccepted)
	counter(c.dropped, s.TradesDropped)
	counter(c.batches, s.BatchesDelivered)
	counter(c.gaps, s.SequenceGaps)
	counter(c.outOfOrder, s.OutOfOrder)
	counter(c.attempts, s.ReconnectAttempts)
	counter(c.reconnects, s.Reconnects)
	counter(c.timeouts, s.HeartbeatTimeouts)
	for _, st := range statuses {
		v := 0.0
		if s.Status == st {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.status, prometheus.GaugeValue, v, string(st))
	}
}

// Renderer records frame durations and failures. It satisfies
// chart.RenderObserver.
type Renderer struct {
	duration prometheus.Histogram
	errors   prometheus.Counter
}

func NewRenderer() *Renderer {
	return &Renderer{
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "frame_duration_seconds",
			Help:      "Time spent rendering one frame of both layers.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "errors_total",
			Help:      "Frames that failed to render.",
		}),
	}
}

func (r *Renderer) ObserveRender(d time.Duration, err error) {
	r.duration.Observe(d.Seconds())
	if err != nil {
		r.errors.Inc()
	}
}

func (r *Renderer) Describe(ch chan<- *prometheus.Desc) {
	r.duration.Describe(ch)
	r.errors.Describe(ch)
}

func (r *Renderer) Collect(ch chan<- prometheus.Metric) {
	r.duration.Collect(ch)
	r.errors.Collect(ch)
}

// NewRegistry registers the given collectors with the Go runtime and
// process collectors.
func NewRegistry(cs ...prometheus.Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	cs = append(cs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
