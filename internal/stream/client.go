// Package stream maintains a resilient websocket connection to a trade feed
// and delivers validated trades in batches.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrClosed is returned by Connect while Disconnect is tearing down.
	ErrClosed = errors.New("stream client closed")

	// ErrNotConnected is returned when a write needs a live connection.
	ErrNotConnected = errors.New("stream not connected")

	errHeartbeatTimeout = errors.New("heartbeat timeout")
)

// Config holds the feed connection settings.
type Config struct {
	URL     string
	Symbols []string
	Header  http.Header

	// FlushInterval bounds how often OnTrades fires.
	FlushInterval time.Duration

	// HeartbeatInterval is the ping period. A connection without a pong for
	// two intervals is considered dead.
	HeartbeatInterval time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	ReconnectBase        time.Duration
	ReconnectMax         time.Duration
	ReconnectJitter      float64
	MaxReconnectAttempts int

	// WriteRate limits outbound messages per second.
	WriteRate float64
}

// DefaultConfig returns the default settings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:                  url,
		FlushInterval:        100 * time.Millisecond,
		HeartbeatInterval:    15 * time.Second,
		HandshakeTimeout:     5 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReconnectBase:        time.Second,
		ReconnectMax:         30 * time.Second,
		ReconnectJitter:      0.2,
		MaxReconnectAttempts: 10,
		WriteRate:            5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.URL)
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = d.ReconnectBase
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = d.ReconnectMax
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.WriteRate <= 0 {
		c.WriteRate = d.WriteRate
	}
	return c
}

// Handler receives the client's output. Callbacks run on the client's
// goroutine and must not block for long.
type Handler struct {
	OnTrades func([]models.Trade)
	OnStatus func(models.ConnectionStatus)
}

// Stats is a snapshot of the client's counters.
type Stats struct {
	Status            models.ConnectionStatus `json:"status"`
	MessagesReceived  int64                   `json:"messages_received"`
	TradesAccepted    int64                   `json:"trades_accepted"`
	TradesDropped     int64                   `json:"trades_dropped"`
	BatchesDelivered  int64                   `json:"batches_delivered"`
	SequenceGaps      int64                   `json:"sequence_gaps"`
	GapEvents         int64                   `json:"gap_events"`
	OutOfOrder        int64                   `json:"out_of_order"`
	LastSequence      int64                   `json:"last_sequence"`
	ReconnectAttempts int64                   `json:"reconnect_attempts"`
	Reconnects        int64                   `json:"reconnects"`
	HeartbeatTimeouts int64                   `json:"heartbeat_timeouts"`
	LastError         string                  `json:"last_error,omitempty"`
	ConnectedAt       time.Time               `json:"connected_at,omitempty"`
}

// Client is a reconnecting websocket trade feed client.
type Client struct {
	cfg     Config
	handler Handler
	logger  *logrus.Logger
	backoff *Backoff
	limiter *rate.Limiter

	mu        sync.Mutex
	status    models.ConnectionStatus
	symbols   map[string]struct{}
	stats     Stats
	seq       sequenceTracker
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool
	connected bool

	writeMu sync.Mutex

	bufMu  sync.Mutex
	buffer []models.Trade
}

// NewClient creates a client. Nothing happens until Connect.
func NewClient(cfg Config, handler Handler, logger *logrus.Logger) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		backoff: NewBackoff(cfg.ReconnectBase, cfg.ReconnectMax, cfg.ReconnectJitter),
		limiter: rate.NewLimiter(rate.Limit(cfg.WriteRate), max(1, int(cfg.WriteRate))),
		status:  models.StatusDisconnected,
		symbols: make(map[string]struct{}),
	}
	for _, s := range cfg.Symbols {
		c.symbols[s] = struct{}{}
	}
	return c
}

// Backoff exposes the reconnect delay policy, e.g. to pin the jitter in tests.
func (c *Client) Backoff() *Backoff {
	return c.backoff
}

// Connect starts the connection loop in the background. It returns
// immediately; progress is reported through OnStatus. A client may be
// connected again after Disconnect or after it gave up reconnecting.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.done != nil {
		select {
		case <-c.done:
			c.cancel()
		default:
			return nil
		}
	}
	if c.cfg.URL == "" {
		return errors.New("stream: empty feed url")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
	return nil
}

// Disconnect stops the client until the next Connect. Buffered trades are
// delivered before it returns.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	} else {
		c.flush()
		c.setStatus(models.StatusDisconnected)
	}

	c.mu.Lock()
	c.closed = false
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
}

// Subscribe adds symbols. They are sent now if connected and replayed on
// every reconnect.
func (c *Client) Subscribe(symbols ...string) error {
	return c.changeSubscription(actionSubscribe, symbols)
}

// Unsubscribe removes symbols.
func (c *Client) Unsubscribe(symbols ...string) error {
	return c.changeSubscription(actionUnsubscribe, symbols)
}

func (c *Client) changeSubscription(action string, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	c.mu.Lock()
	for _, s := range symbols {
		if action == actionSubscribe {
			c.symbols[s] = struct{}{}
		} else {
			delete(c.symbols, s)
		}
	}
	c.mu.Unlock()

	err := c.send(context.Background(), subscribeMessage{Action: action, Params: subscribeParams{Symbols: symbols}})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// Symbols returns the remembered subscription set, sorted.
func (c *Client) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.symbolList()
}

func (c *Client) symbolList() []string {
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Status returns the current connection status.
func (c *Client) Status() models.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Stats returns a snapshot of the counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Status = c.status
	return s
}

func (c *Client) setStatus(s models.ConnectionStatus) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()

	c.logger.WithField("status", s).Info("Feed status changed")
	if c.handler.OnStatus != nil {
		c.handler.OnStatus(s)
	}
}

func (c *Client) recordError(err error) {
	c.mu.Lock()
	c.stats.LastError = err.Error()
	c.mu.Unlock()
}

// run is the reconnect loop.
func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		c.flush()
		if c.Status() != models.StatusError {
			c.setStatus(models.StatusDisconnected)
		}
	}()

	c.setStatus(models.StatusConnecting)
	attempt := 0
	for {
		wasConnected, err := c.session(ctx)
		if ctx.Err() != nil {
			c.logger.Info("Feed connection closed")
			return
		}
		if wasConnected {
			attempt = 0
			c.setStatus(models.StatusDisconnected)
		}
		c.recordError(err)

		attempt++
		if attempt > c.cfg.MaxReconnectAttempts {
			c.logger.WithError(err).Errorf("Giving up after %d reconnect attempts", attempt-1)
			c.setStatus(models.StatusError)
			return
		}

		delay := c.backoff.Delay(attempt)
		c.mu.Lock()
		c.stats.ReconnectAttempts++
		c.mu.Unlock()
		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("Feed connection lost, reconnecting")
		c.setStatus(models.StatusReconnecting)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx ends. It reports
// whether the connection was established.
func (c *Client) session(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return false, fmt.Errorf("failed to connect to feed: %w", err)
	}
	defer conn.Close()

	lastPong := time.Now()
	var pongMu sync.Mutex
	touchPong := func() {
		pongMu.Lock()
		lastPong = time.Now()
		pongMu.Unlock()
	}
	conn.SetPongHandler(func(string) error {
		touchPong()
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	if c.connected {
		c.stats.Reconnects++
	}
	c.connected = true
	c.stats.ConnectedAt = time.Now()
	c.seq.reset()
	symbols := c.symbolList()
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	c.setStatus(models.StatusConnected)

	if len(symbols) > 0 {
		if err := c.send(ctx, subscribeMessage{Action: actionSubscribe, Params: subscribeParams{Symbols: symbols}}); err != nil {
			return true, fmt.Errorf("failed to subscribe: %w", err)
		}
	}

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	readErrors := make(chan error, 1)
	messages := make(chan []byte, 256)
	go func() {
		defer close(messages)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				readErrors <- err
				return
			}
			select {
			case messages <- message:
			case <-connCtx.Done():
				return
			}
		}
	}()

	flushTicker := time.NewTicker(c.cfg.FlushInterval)
	defer flushTicker.Stop()
	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			c.closeGracefully(conn)
			return true, ctx.Err()

		case err := <-readErrors:
			if messages != nil {
				for message := range messages {
					c.handleMessage(message)
				}
			}
			return true, fmt.Errorf("feed read error: %w", err)

		case message, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			if c.handleMessage(message) {
				touchPong()
			}

		case <-flushTicker.C:
			c.flush()

		case <-heartbeat.C:
			pongMu.Lock()
			since := time.Since(lastPong)
			pongMu.Unlock()
			if since > 2*c.cfg.HeartbeatInterval {
				c.mu.Lock()
				c.stats.HeartbeatTimeouts++
				c.mu.Unlock()
				return true, fmt.Errorf("%w: last pong %v ago", errHeartbeatTimeout, since)
			}
			if err := c.send(ctx, pingMessage{Type: "ping", Timestamp: time.Now().UnixMilli()}); err != nil {
				return true, fmt.Errorf("failed to send ping: %w", err)
			}
		}
	}
}

func (c *Client) closeGracefully(conn *websocket.Conn) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
}

// handleMessage validates a frame and buffers its trades. It reports whether
// the frame carried a pong.
func (c *Client) handleMessage(message []byte) bool {
	d := decodeFrame(message, time.Now())

	c.mu.Lock()
	c.stats.MessagesReceived++
	c.stats.TradesDropped += int64(d.dropped)
	c.stats.TradesAccepted += int64(len(d.trades))
	for _, t := range d.trades {
		gap, late := c.seq.observe(t.Sequence)
		if gap > 0 {
			c.stats.SequenceGaps += gap
			c.stats.GapEvents++
		}
		if late {
			c.stats.OutOfOrder++
		}
		if t.Sequence > c.stats.LastSequence {
			c.stats.LastSequence = t.Sequence
		}
	}
	c.mu.Unlock()

	if d.dropped > 0 {
		c.logger.WithField("dropped", d.dropped).Debug("Dropped malformed feed items")
	}
	if len(d.trades) > 0 {
		c.bufMu.Lock()
		c.buffer = append(c.buffer, d.trades...)
		c.bufMu.Unlock()
	}
	return d.pong
}

// flush hands the buffered trades to OnTrades in arrival order.
func (c *Client) flush() {
	c.bufMu.Lock()
	if len(c.buffer) == 0 {
		c.bufMu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = nil
	c.bufMu.Unlock()

	c.mu.Lock()
	c.stats.BatchesDelivered++
	c.mu.Unlock()

	if c.handler.OnTrades != nil {
		c.handler.OnTrades(batch)
	}
}

// send writes one JSON message, respecting the outbound rate limit.
func (c *Client) send(ctx context.Context, v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
