package settings

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/navid-fn/footprint/internal/models"
)

const (
	DarkThemeID  = "dark"
	LightThemeID = "light"
)

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

func DarkTheme() models.Theme {
	return models.Theme{
		ID:   DarkThemeID,
		Name: "Dark",
		Colors: models.Palette{
			Background: "#131722",
			Grid:       "#2a2e39",
			Axis:       "#363a45",
			Text:       "#d1d4dc",
			Up:         "#26a69a",
			Down:       "#ef5350",
			Buy:        "#26a69a",
			Sell:       "#ef5350",
			POC:        "#ffeb3b",
			ValueArea:  "#42a5f5",
			Imbalance:  "#ff9800",
			Crosshair:  "#9598a1",
			Drawing:    "#2962ff",
			Selection:  "#ffffff",
			Ladder:     "#787b86",
			Heatmap:    []string{"#0d0887", "#6a00a8", "#b12a90", "#e16462", "#fca636", "#f0f921"},
		},
	}
}

func LightTheme() models.Theme {
	return models.Theme{
		ID:   LightThemeID,
		Name: "Light",
		Colors: models.Palette{
			Background: "#ffffff",
			Grid:       "#e0e3eb",
			Axis:       "#b2b5be",
			Text:       "#131722",
			Up:         "#089981",
			Down:       "#f23645",
			Buy:        "#089981",
			Sell:       "#f23645",
			POC:        "#e65100",
			ValueArea:  "#1e88e5",
			Imbalance:  "#ff6d00",
			Crosshair:  "#6a6d78",
			Drawing:    "#2962ff",
			Selection:  "#131722",
			Ladder:     "#6a6d78",
			Heatmap:    []string{"#f7fbff", "#c6dbef", "#6baed6", "#2171b5", "#08306b"},
		},
	}
}

// ThemeRegistry holds the built-in themes plus any registered at runtime.
type ThemeRegistry struct {
	mu     sync.RWMutex
	themes map[string]models.Theme
}

func NewThemeRegistry() *ThemeRegistry {
	r := &ThemeRegistry{themes: make(map[string]models.Theme)}
	r.themes[DarkThemeID] = DarkTheme()
	r.themes[LightThemeID] = LightTheme()
	return r
}

// Register adds or replaces a theme after checking its colors.
func (r *ThemeRegistry) Register(t models.Theme) error {
	if t.ID == "" {
		return fmt.Errorf("theme id is required")
	}
	if err := validatePalette(t.Colors); err != nil {
		return fmt.Errorf("theme %q: %w", t.ID, err)
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.themes[t.ID] = t
	return nil
}

func (r *ThemeRegistry) Get(id string) (models.Theme, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.themes[id]
	return t, ok
}

// Resolve returns the theme with id, or the dark theme.
func (r *ThemeRegistry) Resolve(id string) models.Theme {
	if t, ok := r.Get(id); ok {
		return t
	}
	return DarkTheme()
}

// List returns all themes sorted by id.
func (r *ThemeRegistry) List() []models.Theme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Theme, 0, len(r.themes))
	for _, t := range r.themes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// themesFile is the YAML layout of a themes file.
type themesFile struct {
	Themes []models.Theme `yaml:"themes"`
}

// LoadThemesFile registers every theme of a YAML file and returns how many
// were loaded. Palette entries left empty fall back to the renderer defaults.
func (r *ThemeRegistry) LoadThemesFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read themes file: %w", err)
	}
	var f themesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return 0, fmt.Errorf("failed to parse themes file: %w", err)
	}
	for i, t := range f.Themes {
		if err := r.Register(t); err != nil {
			return i, err
		}
	}
	return len(f.Themes), nil
}

func validatePalette(p models.Palette) error {
	named := map[string]string{
		"background": p.Background, "grid": p.Grid, "axis": p.Axis, "text": p.Text,
		"up": p.Up, "down": p.Down, "buy": p.Buy, "sell": p.Sell,
		"poc": p.POC, "value_area": p.ValueArea, "imbalance": p.Imbalance,
		"crosshair": p.Crosshair, "drawing": p.Drawing, "selection": p.Selection, "ladder": p.Ladder,
	}
	for name, v := range named {
		if v != "" && !hexColor.MatchString(v) {
			return fmt.Errorf("invalid %s color %q", name, v)
		}
	}
	for _, v := range p.Heatmap {
		if !hexColor.MatchString(v) {
			return fmt.Errorf("invalid heatmap color %q", v)
		}
	}
	return nil
}
