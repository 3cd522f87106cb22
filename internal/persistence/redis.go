package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps each drawing under its own key and a per-chart set of ids
// as the chart index. Batches run in MULTI/EXEC.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	logger *logrus.Logger

	mu     sync.Mutex
	ready  bool
	closed bool
}

// NewRedisStore wraps an existing client. prefix namespaces every key.
func NewRedisStore(client redis.UniversalClient, prefix string, logger *logrus.Logger) *RedisStore {
	if prefix == "" {
		prefix = "footprint:"
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) drawingKey(chartID, id string) string {
	return s.prefix + "drawing:" + chartID + ":" + id
}

func (s *RedisStore) indexKey(chartID string) string {
	return s.prefix + "chart:" + chartID + ":drawings"
}

func (s *RedisStore) settingsKey(chartID string) string {
	return s.prefix + "settings:" + chartID
}

func (s *RedisStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *RedisStore) initLocked(ctx context.Context) error {
	if s.ready {
		return nil
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: failed to connect to Redis: %v", ErrUnavailable, err)
	}
	s.ready = true
	s.closed = false
	s.logger.Info("Redis store initialized")
	return nil
}

func (s *RedisStore) begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.initLocked(ctx)
}

// Close marks the store closed and closes the client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.ready = false
	return s.client.Close()
}

func (s *RedisStore) IsAvailable(ctx context.Context) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	return s.client.Ping(ctx).Err() == nil
}

func (s *RedisStore) SaveDrawing(ctx context.Context, d models.Drawing) error {
	return s.SaveDrawings(ctx, d.ChartID, []models.Drawing{d})
}

func (s *RedisStore) SaveDrawings(ctx context.Context, chartID string, ds []models.Drawing) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	if len(ds) == 0 {
		return nil
	}
	payloads := make(map[string][]byte, len(ds))
	for _, d := range scoped(chartID, ds) {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal drawing %s: %w", d.ID, err)
		}
		payloads[d.ID] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, data := range payloads {
			pipe.Set(ctx, s.drawingKey(chartID, id), data, 0)
			pipe.SAdd(ctx, s.indexKey(chartID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save drawings: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadDrawings(ctx context.Context, chartID string) ([]models.Drawing, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	ids, err := s.client.SMembers(ctx, s.indexKey(chartID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read drawing index: %w", err)
	}
	out := make([]models.Drawing, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.drawingKey(chartID, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load drawings: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a payload; drop it.
			s.client.SRem(ctx, s.indexKey(chartID), ids[i])
			continue
		}
		var d models.Drawing
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			s.logger.WithError(err).WithField("drawing_id", ids[i]).Warn("Skipping undecodable drawing")
			continue
		}
		out = append(out, d)
	}
	sortDrawings(out)
	return out, nil
}

func (s *RedisStore) DeleteDrawing(ctx context.Context, chartID, id string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.drawingKey(chartID, id))
		pipe.SRem(ctx, s.indexKey(chartID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete drawing: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearDrawings(ctx context.Context, chartID string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	ids, err := s.client.SMembers(ctx, s.indexKey(chartID)).Result()
	if err != nil {
		return fmt.Errorf("failed to read drawing index: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.drawingKey(chartID, id))
		}
		pipe.Del(ctx, s.indexKey(chartID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear drawings: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveSettings(ctx context.Context, snap models.ChartSnapshot) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := s.client.Set(ctx, s.settingsKey(snap.ChartID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadSettings(ctx context.Context, chartID string) (models.ChartSnapshot, error) {
	var snap models.ChartSnapshot
	if err := s.begin(ctx); err != nil {
		return snap, err
	}
	data, err := s.client.Get(ctx, s.settingsKey(chartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return snap, nil
}
