package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/internal/models"
)

// MessageReader is the part of kafka.Reader the trade source uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaSource.
type KafkaConfig struct {
	// Symbols filters delivered trades. Empty accepts every symbol.
	Symbols []string

	// BatchSize is the number of trades buffered before delivery.
	BatchSize int

	// BatchTimeout is the longest a trade waits in the buffer.
	BatchTimeout time.Duration
}

// KafkaSource replays trades published to a Kafka topic. Message values use
// the same JSON payloads as the websocket feed. Offsets are committed only
// after the batch has been handed to OnTrades.
type KafkaSource struct {
	reader  MessageReader
	handler Handler
	logger  *logrus.Logger
	cfg     KafkaConfig

	mu      sync.Mutex
	symbols map[string]struct{}

	received atomic.Int64
	accepted atomic.Int64
	dropped  atomic.Int64
	batches  atomic.Int64
	status   atomic.Value
}

// NewKafkaReader creates a consumer group reader for topic.
func NewKafkaReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

func NewKafkaSource(reader MessageReader, cfg KafkaConfig, handler Handler, logger *logrus.Logger) *KafkaSource {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 250 * time.Millisecond
	}
	s := &KafkaSource{
		reader:  reader,
		handler: handler,
		logger:  logger,
		cfg:     cfg,
	}
	if len(cfg.Symbols) > 0 {
		s.symbols = make(map[string]struct{}, len(cfg.Symbols))
		for _, sym := range cfg.Symbols {
			s.symbols[strings.TrimSpace(sym)] = struct{}{}
		}
	}
	s.status.Store(models.StatusDisconnected)
	return s
}

func (s *KafkaSource) setStatus(st models.ConnectionStatus) {
	if s.status.Swap(st) == st {
		return
	}
	if s.handler.OnStatus != nil {
		s.handler.OnStatus(st)
	}
}

// Stats reports the source's counters in the websocket client's shape.
func (s *KafkaSource) Stats() Stats {
	return Stats{
		Status:           s.status.Load().(models.ConnectionStatus),
		MessagesReceived: s.received.Load(),
		TradesAccepted:   s.accepted.Load(),
		TradesDropped:    s.dropped.Load(),
		BatchesDelivered: s.batches.Load(),
	}
}

// Run consumes until ctx is cancelled, then delivers what is buffered and
// closes the reader.
func (s *KafkaSource) Run(ctx context.Context) error {
	s.logger.WithField("batch_size", s.cfg.BatchSize).Info("Kafka trade source started")
	s.setStatus(models.StatusConnecting)
	defer func() {
		if err := s.reader.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close kafka reader")
		}
		s.setStatus(models.StatusDisconnected)
	}()

	trades := make([]models.Trade, 0, s.cfg.BatchSize)
	msgs := make([]kafka.Message, 0, s.cfg.BatchSize)

	ticker := time.NewTicker(s.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(msgs) == 0 {
			return
		}
		if len(trades) > 0 {
			if s.handler.OnTrades != nil {
				s.handler.OnTrades(append([]models.Trade(nil), trades...))
			}
			s.accepted.Add(int64(len(trades)))
			s.batches.Add(1)
		}
		if err := s.reader.CommitMessages(ctx, msgs...); err != nil {
			s.logger.WithError(err).Warn("Failed to commit offsets")
		}
		trades = trades[:0]
		msgs = msgs[:0]
		ticker.Reset(s.cfg.BatchTimeout)
	}

	for {
		select {
		case <-ctx.Done():
			commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(commitCtx)
			cancel()
			return nil
		case <-ticker.C:
			flush(ctx)
			continue
		default:
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
		m, err := s.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			s.setStatus(models.StatusError)
			s.logger.WithError(err).Error("Kafka fetch failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		s.setStatus(models.StatusConnected)
		s.received.Add(1)

		d := decodeFrame(m.Value, time.Now())
		s.dropped.Add(int64(d.dropped))
		for _, t := range d.trades {
			if s.accepts(t) {
				trades = append(trades, t)
			}
		}
		msgs = append(msgs, m)
		if len(trades) >= s.cfg.BatchSize {
			flush(ctx)
		}
	}
}

// Subscribe adds symbols to the filter. A source without a filter already
// accepts every symbol.
func (s *KafkaSource) Subscribe(symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.symbols == nil {
		return nil
	}
	for _, sym := range symbols {
		s.symbols[strings.TrimSpace(sym)] = struct{}{}
	}
	return nil
}

// Unsubscribe removes symbols from the filter.
func (s *KafkaSource) Unsubscribe(symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		delete(s.symbols, strings.TrimSpace(sym))
	}
	return nil
}

func (s *KafkaSource) accepts(t models.Trade) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.symbols == nil {
		return true
	}
	_, ok := s.symbols[t.Symbol]
	return ok
}
