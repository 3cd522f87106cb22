package main

import (
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/configs"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/persistence"
	"github.com/navid-fn/footprint/internal/settings"
)

func TestNewStore(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	tests := []struct {
		name    string
		cfg     configs.StoreConfig
		wantErr bool
		check   func(persistence.Store) bool
	}{
		{"default", configs.StoreConfig{}, false, func(s persistence.Store) bool { _, ok := s.(*persistence.MemoryStore); return ok }},
		{"memory", configs.StoreConfig{Backend: "memory"}, false, func(s persistence.Store) bool { _, ok := s.(*persistence.MemoryStore); return ok }},
		{"file", configs.StoreConfig{Backend: "file", Dir: t.TempDir()}, false, func(s persistence.Store) bool { _, ok := s.(*persistence.FileStore); return ok }},
		{"redis", configs.StoreConfig{Backend: "redis", RedisAddr: "localhost:0"}, false, func(s persistence.Store) bool { _, ok := s.(*persistence.RedisStore); return ok }},
		{"unknown", configs.StoreConfig{Backend: "cassandra"}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newStore(tt.cfg, log)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected an error for an unknown backend")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if !tt.check(s) {
				t.Errorf("Expected a %s store, got %T", tt.name, s)
			}
		})
	}
}

// recordingFeed logs subscription changes as "+SYM" and "-SYM".
type recordingFeed struct {
	mu    sync.Mutex
	calls []string
}

func (f *recordingFeed) Subscribe(symbols ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		f.calls = append(f.calls, "+"+s)
	}
	return nil
}

func (f *recordingFeed) Unsubscribe(symbols ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		f.calls = append(f.calls, "-"+s)
	}
	return nil
}

func (f *recordingFeed) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	return out
}

func TestFollowInstrument(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	initial := settings.DefaultState()
	initial.Settings.Instrument = "EUR/USD"
	state := settings.NewStore(initial, settings.NewThemeRegistry(), nil, log)
	feed := &recordingFeed{}
	unfollow := followInstrument(state, []string{"EUR/USD"}, log, feed)
	defer unfollow()

	if got := feed.take(); !reflect.DeepEqual(got, []string{"+EUR/USD"}) {
		t.Errorf("Expected the current instrument subscribed, got %v", got)
	}

	tests := []struct {
		name       string
		instrument string
		expected   []string
	}{
		{"configured symbol kept", "GBP/USD", []string{"+GBP/USD"}},
		{"previous instrument dropped", "USD/JPY", []string{"+USD/JPY", "-GBP/USD"}},
		{"unchanged", "USD/JPY", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instrument := tt.instrument
			if err := state.Dispatch(settings.UpdateSettings{Patch: models.SettingsPatch{Instrument: &instrument}}); err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if got := feed.take(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}

	unfollow()
	other := "AUD/USD"
	if err := state.Dispatch(settings.UpdateSettings{Patch: models.SettingsPatch{Instrument: &other}}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got := feed.take(); len(got) != 0 {
		t.Errorf("Expected no calls after unfollow, got %v", got)
	}
}
