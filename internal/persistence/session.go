package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce delays view and drawing writes.
const DefaultDebounce = 500 * time.Millisecond

// SessionConfig configures a chart session.
type SessionConfig struct {
	ChartID      string
	Debounce     time.Duration
	WriteTimeout time.Duration
	Breaker      BreakerConfig
}

// Session is the chart-scoped persistence front end. Every write lands in an
// in-memory mirror first; the durable store is written when it is available
// and the breaker is closed. Settings are written synchronously, view and
// drawings on a debounce timer.
type Session struct {
	store   Store
	memory  *MemoryStore
	breaker *Breaker
	logger  *logrus.Logger
	cfg     SessionConfig

	mu              sync.Mutex
	durable         bool
	closed          bool
	settings        models.Settings
	hasSettings     bool
	view            *models.ViewState
	viewDirty       bool
	pendingDrawings []models.Drawing
	drawingsDirty   bool
	persistedIDs    map[string]struct{}
	timer           *time.Timer

	flushMu sync.Mutex
}

// NewSession binds store to one chart. A nil store gives a session-only session.
func NewSession(store Store, cfg SessionConfig, logger *logrus.Logger) *Session {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "chart:" + cfg.ChartID
	}
	return &Session{
		store:        store,
		memory:       NewMemoryStore(),
		breaker:      NewBreaker(cfg.Breaker, logger),
		logger:       logger,
		cfg:          cfg,
		persistedIDs: make(map[string]struct{}),
	}
}

// Durable reports whether writes currently reach the durable store.
func (s *Session) Durable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durable && s.breaker.State() != BreakerOpen
}

// Breaker exposes the write breaker.
func (s *Session) Breaker() *Breaker {
	return s.breaker
}

// Restore initializes the store and loads the chart's snapshot and drawings.
// A missing snapshot yields nil. An unreachable store is not an error: the
// session switches to memory only.
func (s *Session) Restore(ctx context.Context) (*models.ChartSnapshot, []models.Drawing, error) {
	log := s.logger.WithField("chart_id", s.cfg.ChartID)
	durable := false
	if s.store != nil {
		if err := s.store.Init(ctx); err != nil {
			log.WithError(err).Warn("Storage unavailable, keeping chart state for this session only")
		} else if !s.store.IsAvailable(ctx) {
			log.Warn("Storage unavailable, keeping chart state for this session only")
		} else {
			durable = true
		}
	}
	s.mu.Lock()
	s.durable = durable
	s.mu.Unlock()

	if !durable {
		return nil, []models.Drawing{}, nil
	}

	var snapshot *models.ChartSnapshot
	snap, err := s.store.LoadSettings(ctx, s.cfg.ChartID)
	switch {
	case err == nil:
		snapshot = &snap
		_ = s.memory.SaveSettings(ctx, snap)
	case errors.Is(err, ErrNotFound):
	default:
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	drawings, err := s.store.LoadDrawings(ctx, s.cfg.ChartID)
	if err != nil {
		return snapshot, nil, fmt.Errorf("failed to load drawings: %w", err)
	}
	_ = s.memory.SaveDrawings(ctx, s.cfg.ChartID, drawings)

	s.mu.Lock()
	if snapshot != nil {
		s.settings = snapshot.Settings
		s.hasSettings = true
		s.view = snapshot.View
	}
	for _, d := range drawings {
		s.persistedIDs[d.ID] = struct{}{}
	}
	s.mu.Unlock()

	log.WithField("drawings", len(drawings)).Info("Chart state restored")
	return snapshot, drawings, nil
}

// PersistSettings writes the settings snapshot synchronously.
func (s *Session) PersistSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.settings = settings
	s.hasSettings = true
	snap := s.snapshotLocked()
	durable := s.durable
	s.mu.Unlock()

	_ = s.memory.SaveSettings(ctx, snap)
	if !durable {
		return nil
	}
	return s.write(ctx, "settings", func(ctx context.Context) error {
		return s.store.SaveSettings(ctx, snap)
	})
}

// PersistView schedules a debounced write of the view state.
func (s *Session) PersistView(view models.ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.view = &view
	s.viewDirty = true
	s.scheduleLocked()
}

// PersistDrawings schedules a debounced write of the chart's full drawing set.
func (s *Session) PersistDrawings(ds []models.Drawing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pendingDrawings = scoped(s.cfg.ChartID, ds)
	s.drawingsDirty = true
	s.scheduleLocked()
}

func (s *Session) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		defer cancel()
		if err := s.flush(ctx); err != nil {
			s.logger.WithError(err).WithField("chart_id", s.cfg.ChartID).Warn("Debounced chart write failed")
		}
	})
}

// Flush writes any pending view or drawing changes now.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.flush(ctx)
}

func (s *Session) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	viewDirty, drawingsDirty := s.viewDirty, s.drawingsDirty
	snap := s.snapshotLocked()
	drawings := s.pendingDrawings
	var removed []string
	if drawingsDirty {
		keep := make(map[string]struct{}, len(drawings))
		for _, d := range drawings {
			keep[d.ID] = struct{}{}
		}
		for id := range s.persistedIDs {
			if _, ok := keep[id]; !ok {
				removed = append(removed, id)
			}
		}
	}
	s.viewDirty, s.drawingsDirty = false, false
	durable := s.durable
	s.mu.Unlock()

	if drawingsDirty {
		_ = s.memory.ClearDrawings(ctx, s.cfg.ChartID)
		_ = s.memory.SaveDrawings(ctx, s.cfg.ChartID, drawings)
	}
	if viewDirty {
		_ = s.memory.SaveSettings(ctx, snap)
	}
	if !durable {
		return nil
	}

	var errs []error
	if viewDirty {
		if err := s.write(ctx, "view", func(ctx context.Context) error {
			return s.store.SaveSettings(ctx, snap)
		}); err != nil {
			errs = append(errs, err)
			s.markDirty(true, false, nil)
		}
	}
	if drawingsDirty {
		err := s.write(ctx, "drawings", func(ctx context.Context) error {
			for _, id := range removed {
				if err := s.store.DeleteDrawing(ctx, s.cfg.ChartID, id); err != nil {
					return err
				}
			}
			return s.store.SaveDrawings(ctx, s.cfg.ChartID, drawings)
		})
		if err != nil {
			errs = append(errs, err)
			s.markDirty(false, true, drawings)
		} else {
			ids := make(map[string]struct{}, len(drawings))
			for _, d := range drawings {
				ids[d.ID] = struct{}{}
			}
			s.mu.Lock()
			s.persistedIDs = ids
			s.mu.Unlock()
		}
	}
	return errors.Join(errs...)
}

// markDirty re-queues a failed write unless newer changes superseded it,
// and retries it after the next debounce.
func (s *Session) markDirty(view, drawings bool, ds []models.Drawing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if view {
		s.viewDirty = true
	}
	if drawings && !s.drawingsDirty {
		s.pendingDrawings = ds
		s.drawingsDirty = true
	}
	if !s.closed {
		s.scheduleLocked()
	}
}

func (s *Session) write(ctx context.Context, what string, fn func(context.Context) error) error {
	err := s.breaker.Execute(func() error { return fn(ctx) })
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"chart_id": s.cfg.ChartID,
			"write":    what,
		}).Warn("Chart state write failed, keeping it in memory")
		return fmt.Errorf("persist %s: %w", what, err)
	}
	return nil
}

func (s *Session) snapshotLocked() models.ChartSnapshot {
	snap := models.ChartSnapshot{
		ChartID:   s.cfg.ChartID,
		Settings:  s.settings,
		UpdatedAt: time.Now().UTC(),
	}
	if !s.hasSettings {
		snap.Settings = models.DefaultSettings()
	}
	if s.view != nil {
		v := *s.view
		snap.View = &v
	}
	return snap
}

// Drawings returns the session's current drawing set from the in-memory mirror.
func (s *Session) Drawings(ctx context.Context) ([]models.Drawing, error) {
	return s.memory.LoadDrawings(ctx, s.cfg.ChartID)
}

// Close flushes pending writes and closes the store.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Flush(ctx)
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}
