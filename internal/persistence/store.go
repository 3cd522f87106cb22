// Package persistence stores user drawings and chart settings per chart id.
//
// Every Store lazily initializes itself on first use; Init and Close may be
// called any number of times. A store whose backend cannot be reached
// reports IsAvailable == false and callers fall back to session-only state.
package persistence

import (
	"context"
	"errors"
	"sort"

	"github.com/navid-fn/footprint/internal/models"
)

var (
	// ErrNotFound is returned by LoadSettings when no snapshot exists.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Store is durable, chart-scoped storage for drawings and settings snapshots.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	IsAvailable(ctx context.Context) bool

	// SaveDrawing upserts one drawing keyed by its id.
	SaveDrawing(ctx context.Context, d models.Drawing) error

	// SaveDrawings upserts a batch as one atomic unit where the backend allows.
	SaveDrawings(ctx context.Context, chartID string, ds []models.Drawing) error

	// LoadDrawings returns the chart's drawings ordered by creation time.
	LoadDrawings(ctx context.Context, chartID string) ([]models.Drawing, error)

	DeleteDrawing(ctx context.Context, chartID, id string) error
	ClearDrawings(ctx context.Context, chartID string) error

	SaveSettings(ctx context.Context, snap models.ChartSnapshot) error
	LoadSettings(ctx context.Context, chartID string) (models.ChartSnapshot, error)
}

// sortDrawings orders drawings by creation time, then id, so every backend
// returns the same z-order.
func sortDrawings(ds []models.Drawing) {
	sort.SliceStable(ds, func(i, j int) bool {
		if !ds[i].CreatedAt.Equal(ds[j].CreatedAt) {
			return ds[i].CreatedAt.Before(ds[j].CreatedAt)
		}
		return ds[i].ID < ds[j].ID
	})
}

// scoped returns copies of ds with ChartID forced to chartID.
func scoped(chartID string, ds []models.Drawing) []models.Drawing {
	out := make([]models.Drawing, len(ds))
	for i, d := range ds {
		d = d.Clone()
		d.ChartID = chartID
		out[i] = d
	}
	return out
}
