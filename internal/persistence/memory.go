package persistence

import (
	"context"
	"sync"

	"github.com/navid-fn/footprint/internal/models"
)

// MemoryStore keeps everything in process memory. It is the session-only
// fallback and the reference implementation in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	closed   bool
	drawings map[string]map[string]models.Drawing
	settings map[string]models.ChartSnapshot
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drawings: make(map[string]map[string]models.Drawing),
		settings: make(map[string]models.ChartSnapshot),
	}
}

func (s *MemoryStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) IsAvailable(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

func (s *MemoryStore) SaveDrawing(ctx context.Context, d models.Drawing) error {
	return s.SaveDrawings(ctx, d.ChartID, []models.Drawing{d})
}

func (s *MemoryStore) SaveDrawings(ctx context.Context, chartID string, ds []models.Drawing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	chart, ok := s.drawings[chartID]
	if !ok {
		chart = make(map[string]models.Drawing)
		s.drawings[chartID] = chart
	}
	for _, d := range scoped(chartID, ds) {
		chart[d.ID] = d
	}
	return nil
}

func (s *MemoryStore) LoadDrawings(ctx context.Context, chartID string) ([]models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]models.Drawing, 0, len(s.drawings[chartID]))
	for _, d := range s.drawings[chartID] {
		out = append(out, d.Clone())
	}
	sortDrawings(out)
	return out, nil
}

func (s *MemoryStore) DeleteDrawing(ctx context.Context, chartID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.drawings[chartID], id)
	return nil
}

func (s *MemoryStore) ClearDrawings(ctx context.Context, chartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.drawings, chartID)
	return nil
}

func (s *MemoryStore) SaveSettings(ctx context.Context, snap models.ChartSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if snap.View != nil {
		v := *snap.View
		if v.YDomain != nil {
			d := *v.YDomain
			v.YDomain = &d
		}
		snap.View = &v
	}
	s.settings[snap.ChartID] = snap
	return nil
}

func (s *MemoryStore) LoadSettings(ctx context.Context, chartID string) (models.ChartSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return models.ChartSnapshot{}, ErrClosed
	}
	snap, ok := s.settings[chartID]
	if !ok {
		return models.ChartSnapshot{}, ErrNotFound
	}
	return snap, nil
}
