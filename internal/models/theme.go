package models

// Palette holds the hex colors a theme paints with.
type Palette struct {
	Background string   `json:"background" yaml:"background"`
	Grid       string   `json:"grid" yaml:"grid"`
	Axis       string   `json:"axis" yaml:"axis"`
	Text       string   `json:"text" yaml:"text"`
	Up         string   `json:"up" yaml:"up"`
	Down       string   `json:"down" yaml:"down"`
	Buy        string   `json:"buy" yaml:"buy"`
	Sell       string   `json:"sell" yaml:"sell"`
	POC        string   `json:"poc" yaml:"poc"`
	ValueArea  string   `json:"value_area" yaml:"value_area"`
	Imbalance  string   `json:"imbalance" yaml:"imbalance"`
	Crosshair  string   `json:"crosshair" yaml:"crosshair"`
	Drawing    string   `json:"drawing" yaml:"drawing"`
	Selection  string   `json:"selection" yaml:"selection"`
	Ladder     string   `json:"ladder" yaml:"ladder"`
	Heatmap    []string `json:"heatmap" yaml:"heatmap"`
}

// Theme is a named palette.
type Theme struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Colors Palette `json:"colors" yaml:"colors"`
}
