package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/sirupsen/logrus"
)

// FileStore keeps one JSON document per chart under a data directory:
//
//	<dir>/drawings/<chart>.json   drawings keyed by id
//	<dir>/settings/<chart>.json   latest snapshot
//
// Writes go to a temp file that is renamed into place, so a batch either
// lands whole or not at all.
type FileStore struct {
	dir    string
	logger *logrus.Logger

	mu     sync.Mutex
	ready  bool
	closed bool
}

// NewFileStore creates a store rooted at dir. The directory is created on Init.
func NewFileStore(dir string, logger *logrus.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logger}
}

func (s *FileStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked()
}

func (s *FileStore) initLocked() error {
	if s.ready {
		return nil
	}
	for _, sub := range []string{"drawings", "settings"} {
		if err := os.MkdirAll(filepath.Join(s.dir, sub), 0o755); err != nil {
			return fmt.Errorf("%w: failed to create data directory: %v", ErrUnavailable, err)
		}
	}
	s.ready = true
	s.closed = false
	s.logger.WithField("dir", s.dir).Info("File store initialized")
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ready = false
	return nil
}

func (s *FileStore) IsAvailable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if err := s.initLocked(); err != nil {
		return false
	}
	probe, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	return true
}

// begin lazily initializes the store and holds the lock until the returned
// func is called.
func (s *FileStore) begin() (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if err := s.initLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return s.mu.Unlock, nil
}

func (s *FileStore) path(kind, chartID string) string {
	return filepath.Join(s.dir, kind, url.PathEscape(chartID)+".json")
}

func (s *FileStore) SaveDrawing(ctx context.Context, d models.Drawing) error {
	return s.SaveDrawings(ctx, d.ChartID, []models.Drawing{d})
}

func (s *FileStore) SaveDrawings(ctx context.Context, chartID string, ds []models.Drawing) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	current, err := s.readDrawings(chartID)
	if err != nil {
		return err
	}
	for _, d := range scoped(chartID, ds) {
		current[d.ID] = d
	}
	return s.writeJSON(s.path("drawings", chartID), current)
}

func (s *FileStore) LoadDrawings(ctx context.Context, chartID string) ([]models.Drawing, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	current, err := s.readDrawings(chartID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Drawing, 0, len(current))
	for _, d := range current {
		out = append(out, d)
	}
	sortDrawings(out)
	return out, nil
}

func (s *FileStore) DeleteDrawing(ctx context.Context, chartID, id string) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	current, err := s.readDrawings(chartID)
	if err != nil {
		return err
	}
	if _, ok := current[id]; !ok {
		return nil
	}
	delete(current, id)
	return s.writeJSON(s.path("drawings", chartID), current)
}

func (s *FileStore) ClearDrawings(ctx context.Context, chartID string) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	if err := os.Remove(s.path("drawings", chartID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear drawings: %w", err)
	}
	return nil
}

func (s *FileStore) SaveSettings(ctx context.Context, snap models.ChartSnapshot) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()
	return s.writeJSON(s.path("settings", snap.ChartID), snap)
}

func (s *FileStore) LoadSettings(ctx context.Context, chartID string) (models.ChartSnapshot, error) {
	done, err := s.begin()
	if err != nil {
		return models.ChartSnapshot{}, err
	}
	defer done()

	var snap models.ChartSnapshot
	data, err := os.ReadFile(s.path("settings", chartID))
	if errors.Is(err, os.ErrNotExist) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode settings: %w", err)
	}
	return snap, nil
}

func (s *FileStore) readDrawings(chartID string) (map[string]models.Drawing, error) {
	current := make(map[string]models.Drawing)
	data, err := os.ReadFile(s.path("drawings", chartID))
	if errors.Is(err, os.ErrNotExist) {
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read drawings: %w", err)
	}
	if err := json.Unmarshal(data, &current); err != nil {
		return nil, fmt.Errorf("failed to decode drawings: %w", err)
	}
	return current, nil
}

func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}
