package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/navid-fn/footprint/internal/models"
)

// fakeStore wraps a MemoryStore with failure injection and call counters.
type fakeStore struct {
	*MemoryStore

	mu            sync.Mutex
	fail          bool
	unavailable   bool
	settingsSaves int
	drawingSaves  int
	deletes       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: NewMemoryStore()}
}

func (f *fakeStore) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeStore) check() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("disk on fire")
	}
	return nil
}

func (f *fakeStore) IsAvailable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *fakeStore) SaveSettings(ctx context.Context, snap models.ChartSnapshot) error {
	if err := f.check(); err != nil {
		return err
	}
	f.mu.Lock()
	f.settingsSaves++
	f.mu.Unlock()
	return f.MemoryStore.SaveSettings(ctx, snap)
}

func (f *fakeStore) SaveDrawings(ctx context.Context, chartID string, ds []models.Drawing) error {
	if err := f.check(); err != nil {
		return err
	}
	f.mu.Lock()
	f.drawingSaves++
	f.mu.Unlock()
	return f.MemoryStore.SaveDrawings(ctx, chartID, ds)
}

func (f *fakeStore) DeleteDrawing(ctx context.Context, chartID, id string) error {
	if err := f.check(); err != nil {
		return err
	}
	f.mu.Lock()
	f.deletes++
	f.mu.Unlock()
	return f.MemoryStore.DeleteDrawing(ctx, chartID, id)
}

func (f *fakeStore) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settingsSaves, f.drawingSaves, f.deletes
}

func TestSessionRestore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	view := models.ViewState{ViewOffset: 3, ViewCount: 30}
	settings := models.DefaultSettings()
	settings.ChartType = models.ChartDots
	_ = store.MemoryStore.SaveSettings(ctx, models.ChartSnapshot{ChartID: "c1", Settings: settings, View: &view})
	_ = store.MemoryStore.SaveDrawings(ctx, "c1", sampleDrawings("c1"))

	s := NewSession(store, SessionConfig{ChartID: "c1"}, quietLogger())
	snap, drawings, err := s.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if snap == nil || snap.Settings.ChartType != models.ChartDots || snap.View == nil || snap.View.ViewOffset != 3 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	if len(drawings) != 3 {
		t.Errorf("Expected 3 drawings, got %d", len(drawings))
	}
	if !s.Durable() {
		t.Error("Expected durable session")
	}
}

func TestSessionUnavailableStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.unavailable = true

	s := NewSession(store, SessionConfig{ChartID: "c1", Debounce: time.Millisecond}, quietLogger())
	snap, drawings, err := s.Restore(ctx)
	if err != nil || snap != nil || len(drawings) != 0 {
		t.Fatalf("Expected empty session-only restore, got %v %v %v", snap, drawings, err)
	}
	if s.Durable() {
		t.Error("Expected session-only mode")
	}

	if err := s.PersistSettings(ctx, models.DefaultSettings()); err != nil {
		t.Errorf("Expected session-only write to succeed, got %v", err)
	}
	s.PersistDrawings(sampleDrawings("c1"))
	if err := s.Flush(ctx); err != nil {
		t.Errorf("Flush failed: %v", err)
	}
	if settingsSaves, drawingSaves, _ := store.counts(); settingsSaves != 0 || drawingSaves != 0 {
		t.Errorf("Expected no durable writes, got %d settings %d drawings", settingsSaves, drawingSaves)
	}
	got, _ := s.Drawings(ctx)
	if len(got) != 3 {
		t.Errorf("Expected drawings kept in memory, got %d", len(got))
	}
}

func TestSessionDebouncesDrawings(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	s := NewSession(store, SessionConfig{ChartID: "c1", Debounce: 30 * time.Millisecond}, quietLogger())
	if _, _, err := s.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	ds := sampleDrawings("c1")
	for i := 1; i <= len(ds); i++ {
		s.PersistDrawings(ds[:i])
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, saves, _ := store.counts(); saves > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for debounced write")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	if _, saves, _ := store.counts(); saves != 1 {
		t.Errorf("Expected one coalesced write, got %d", saves)
	}

	// Removing a drawing deletes it from the store on the next flush.
	s.PersistDrawings(ds[:2])
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	got, _ := store.LoadDrawings(ctx, "c1")
	if len(got) != 2 {
		t.Errorf("Expected 2 stored drawings, got %d", len(got))
	}
	if _, _, deletes := store.counts(); deletes != 1 {
		t.Errorf("Expected 1 delete, got %d", deletes)
	}
}

func TestSessionRetriesFailedWrites(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	s := NewSession(store, SessionConfig{
		ChartID:  "c1",
		Debounce: 20 * time.Millisecond,
		Breaker:  BreakerConfig{MaxFailures: 100, Timeout: time.Hour},
	}, quietLogger())
	if _, _, err := s.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	defer s.Close(ctx)

	store.setFail(true)
	s.PersistView(models.ViewState{ViewOffset: 4, ViewCount: 20})
	s.PersistDrawings(sampleDrawings("c1"))
	time.Sleep(60 * time.Millisecond)
	store.setFail(false)

	// No further changes: the failed writes go out on their own.
	deadline := time.Now().Add(2 * time.Second)
	for {
		views, drawings, _ := store.counts()
		if views > 0 && drawings > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected failed writes to be retried, got %d view and %d drawing saves", views, drawings)
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap, err := store.LoadSettings(ctx, "c1")
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if snap.View == nil || snap.View.ViewOffset != 4 {
		t.Errorf("Expected retried view offset 4, got %+v", snap.View)
	}
}

func TestSessionSettingsAreSynchronous(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	s := NewSession(store, SessionConfig{ChartID: "c1", Debounce: time.Hour}, quietLogger())
	if _, _, err := s.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	s.PersistView(models.ViewState{ViewOffset: 7, ViewCount: 25})
	settings := models.DefaultSettings()
	settings.TimeframeMinutes = 5
	if err := s.PersistSettings(ctx, settings); err != nil {
		t.Fatalf("PersistSettings failed: %v", err)
	}

	snap, err := store.LoadSettings(ctx, "c1")
	if err != nil {
		t.Fatalf("Expected settings written immediately: %v", err)
	}
	if snap.Settings.TimeframeMinutes != 5 {
		t.Errorf("Expected timeframe 5, got %d", snap.Settings.TimeframeMinutes)
	}
	if snap.View == nil || snap.View.ViewOffset != 7 {
		t.Errorf("Expected latest view in snapshot, got %+v", snap.View)
	}
}

func TestSessionBreakerFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	s := NewSession(store, SessionConfig{
		ChartID: "c1",
		Breaker: BreakerConfig{MaxFailures: 2, Timeout: time.Hour},
	}, quietLogger())
	if _, _, err := s.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	store.setFail(true)
	for i := 0; i < 2; i++ {
		if err := s.PersistSettings(ctx, models.DefaultSettings()); err == nil {
			t.Fatalf("Expected write %d to fail", i)
		}
	}
	if s.Breaker().State() != BreakerOpen {
		t.Fatalf("Expected breaker open, got %s", s.Breaker().State())
	}
	if s.Durable() {
		t.Error("Expected session to report non-durable while breaker is open")
	}

	store.setFail(false)
	err := s.PersistSettings(ctx, models.DefaultSettings())
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Expected ErrBreakerOpen, got %v", err)
	}
	if saves, _, _ := store.counts(); saves != 0 {
		t.Errorf("Expected no writes while open, got %d", saves)
	}
}

func TestBreakerHalfOpen(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Timeout: time.Minute}, quietLogger())
	b.now = func() time.Time { return now }

	fail := errors.New("boom")
	_ = b.Execute(func() error { return fail })
	if b.State() != BreakerOpen {
		t.Fatalf("Expected open, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Expected ErrBreakerOpen, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("Expected trial call to run, got %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("Expected closed after successful trial, got %s", b.State())
	}
}
