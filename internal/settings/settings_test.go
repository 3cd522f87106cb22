package settings

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func ptr[T any](v T) *T { return &v }

func TestReduce(t *testing.T) {
	base := DefaultState()
	tests := []struct {
		name    string
		action  Action
		wantErr bool
		check   func(State) bool
	}{
		{"patch timeframe", UpdateSettings{Patch: models.SettingsPatch{TimeframeMinutes: ptr(5)}}, false,
			func(s State) bool { return s.Settings.TimeframeMinutes == 5 && s.Settings.ChartType == models.ChartBidAsk }},
		{"reject bad chart type", UpdateSettings{Patch: models.SettingsPatch{ChartType: ptr(models.ChartType("pie"))}}, true,
			func(s State) bool { return s.Settings.ChartType == models.ChartBidAsk }},
		{"reject zero multiplier", UpdateSettings{Patch: models.SettingsPatch{TickMultiplier: ptr(0)}}, true,
			func(s State) bool { return s.Settings.TickMultiplier == 1 }},
		{"set tool", SetTool{Tool: models.ToolFib}, false,
			func(s State) bool { return s.Tool == models.ToolFib }},
		{"reject tool", SetTool{Tool: "lasso"}, true,
			func(s State) bool { return s.Tool == models.ToolSelect }},
		{"status", SetStatus{Status: models.StatusConnected}, false,
			func(s State) bool { return s.Status == models.StatusConnected }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reduce(base, tt.action)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if !tt.check(got) {
				t.Errorf("Unexpected state %+v", got)
			}
		})
	}

	if base.Settings.TimeframeMinutes != 1 {
		t.Error("Expected Reduce not to mutate its input")
	}
}

func TestReduceResetKeepsInstrument(t *testing.T) {
	s := DefaultState()
	s.Settings.Instrument = "EUR/USD"
	s.Settings.ShowHeatmap = true
	got, err := Reduce(s, ResetSettings{})
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if got.Settings.Instrument != "EUR/USD" || got.Settings.ShowHeatmap {
		t.Errorf("Expected defaults with the instrument kept, got %+v", got.Settings)
	}
}

func TestStorePersistsOnlySettingsChanges(t *testing.T) {
	var saved []models.Settings
	persist := func(s models.Settings) error {
		saved = append(saved, s)
		return nil
	}
	s := NewStore(DefaultState(), NewThemeRegistry(), persist, quietLogger())

	if err := s.Dispatch(SetTool{Tool: models.ToolPen}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("Expected no persist for a tool change, got %d", len(saved))
	}
	if err := s.Dispatch(UpdateSettings{Patch: models.SettingsPatch{ShowHeatmap: ptr(true)}}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(saved) != 1 || !saved[0].ShowHeatmap {
		t.Errorf("Expected one synchronous persist, got %+v", saved)
	}
}

func TestStorePersistFailureKeepsState(t *testing.T) {
	persist := func(models.Settings) error { return errors.New("disk full") }
	s := NewStore(DefaultState(), nil, persist, quietLogger())
	if err := s.Dispatch(UpdateSettings{Patch: models.SettingsPatch{ShowGrid: ptr(false)}}); err != nil {
		t.Fatalf("Expected persist failures to be absorbed, got %v", err)
	}
	if s.Settings().ShowGrid {
		t.Error("Expected the change applied in memory")
	}
}

func TestStoreListenersAndQueue(t *testing.T) {
	s := NewStore(DefaultState(), nil, nil, quietLogger())
	var order []string
	unsubscribe := s.Subscribe(func(prev, next State) {
		order = append(order, string(next.Tool))
		if next.Tool == models.ToolTrendline {
			// Re-entrant dispatch is queued behind the current one.
			if err := s.Dispatch(SetTool{Tool: models.ToolRay}); err != nil {
				t.Errorf("Expected queued dispatch, got %v", err)
			}
			order = append(order, "queued")
		}
	})

	if err := s.Dispatch(SetTool{Tool: models.ToolTrendline}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	want := []string{"trendline", "queued", "ray"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, order)
			break
		}
	}
	if s.State().Tool != models.ToolRay {
		t.Errorf("Expected ray, got %s", s.State().Tool)
	}

	unsubscribe()
	_ = s.Dispatch(SetTool{Tool: models.ToolFib})
	if len(order) != 3 {
		t.Errorf("Expected no calls after unsubscribe, got %v", order)
	}
}

func TestStoreRejectsUnknownTheme(t *testing.T) {
	s := NewStore(DefaultState(), NewThemeRegistry(), nil, quietLogger())
	err := s.Dispatch(UpdateSettings{Patch: models.SettingsPatch{ActiveThemeID: ptr("neon")}})
	if !errors.Is(err, ErrUnknownTheme) {
		t.Errorf("Expected ErrUnknownTheme, got %v", err)
	}
	if err := s.Dispatch(UpdateSettings{Patch: models.SettingsPatch{ActiveThemeID: ptr(LightThemeID)}}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if s.Theme().ID != LightThemeID {
		t.Errorf("Expected the light theme, got %s", s.Theme().ID)
	}
}

func TestLoadThemesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "themes.yaml")
	body := `themes:
  - id: solar
    name: Solarized
    colors:
      background: "#002b36"
      buy: "#859900"
      sell: "#dc322f"
      heatmap: ["#002b36", "#b58900"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewThemeRegistry()
	n, err := r.LoadThemesFile(path)
	if err != nil {
		t.Fatalf("LoadThemesFile failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 theme, got %d", n)
	}
	th, ok := r.Get("solar")
	if !ok || th.Colors.Buy != "#859900" || len(th.Colors.Heatmap) != 2 {
		t.Errorf("Expected the solar theme, got %+v", th)
	}
	if got := len(r.List()); got != 3 {
		t.Errorf("Expected 3 themes, got %d", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("themes:\n  - id: x\n    colors:\n      up: red\n"), 0o644)
	if _, err := r.LoadThemesFile(bad); err == nil {
		t.Error("Expected an invalid color to be rejected")
	}
	if r.Resolve("missing").ID != DarkThemeID {
		t.Error("Expected unknown ids to resolve to the dark theme")
	}
}
