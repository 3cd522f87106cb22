package models

import (
	"fmt"
	"time"
)

// ChartType selects how footprint cells are painted.
type ChartType string

const (
	ChartBidAsk ChartType = "bid_ask"
	ChartVolume ChartType = "volume"
	ChartDelta  ChartType = "delta"
	ChartDots   ChartType = "dots"
)

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	switch t {
	case ChartBidAsk, ChartVolume, ChartDelta, ChartDots:
		return true
	}
	return false
}

// Settings is the persisted, user-facing chart configuration.
type Settings struct {
	Instrument       string    `json:"instrument"`
	ChartType        ChartType `json:"chart_type"`
	TimeframeMinutes int       `json:"timeframe_minutes"`
	TickMultiplier   int       `json:"tick_multiplier"`

	ShowHeatmap     bool `json:"show_heatmap"`
	ShowPOC         bool `json:"show_poc"`
	ShowValueArea   bool `json:"show_value_area"`
	ShowImbalance   bool `json:"show_imbalance"`
	ShowDepthLadder bool `json:"show_depth_ladder"`
	ShowGrid        bool `json:"show_grid"`
	ShowCrosshair   bool `json:"show_crosshair"`
	ShowCellText    bool `json:"show_cell_text"`

	ImbalanceRatio     float64 `json:"imbalance_ratio"`
	ImbalanceMinVolume float64 `json:"imbalance_min_volume"`
	ValueAreaPercent   float64 `json:"value_area_percent"`

	ActiveThemeID string `json:"active_theme_id"`
}

// DefaultSettings is the configuration a new chart starts with.
func DefaultSettings() Settings {
	return Settings{
		ChartType:          ChartBidAsk,
		TimeframeMinutes:   1,
		TickMultiplier:     1,
		ShowPOC:            true,
		ShowValueArea:      true,
		ShowImbalance:      true,
		ShowGrid:           true,
		ShowCrosshair:      true,
		ShowCellText:       true,
		ImbalanceRatio:     3,
		ImbalanceMinVolume: 1,
		ValueAreaPercent:   70,
		ActiveThemeID:      "dark",
	}
}

// Interval is the candle bucket length.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.TimeframeMinutes) * time.Minute
}

// Validate rejects settings the aggregation cannot work with.
func (s Settings) Validate() error {
	if !s.ChartType.Valid() {
		return fmt.Errorf("unknown chart type %q", s.ChartType)
	}
	if s.TimeframeMinutes <= 0 {
		return fmt.Errorf("timeframe must be positive, got %d", s.TimeframeMinutes)
	}
	if s.TickMultiplier <= 0 {
		return fmt.Errorf("tick multiplier must be positive, got %d", s.TickMultiplier)
	}
	if s.ImbalanceRatio <= 1 {
		return fmt.Errorf("imbalance ratio must be above 1, got %v", s.ImbalanceRatio)
	}
	if s.ValueAreaPercent <= 0 || s.ValueAreaPercent > 100 {
		return fmt.Errorf("value area percent must be in (0, 100], got %v", s.ValueAreaPercent)
	}
	return nil
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	Instrument       *string    `json:"instrument,omitempty"`
	ChartType        *ChartType `json:"chart_type,omitempty"`
	TimeframeMinutes *int       `json:"timeframe_minutes,omitempty"`
	TickMultiplier   *int       `json:"tick_multiplier,omitempty"`

	ShowHeatmap     *bool `json:"show_heatmap,omitempty"`
	ShowPOC         *bool `json:"show_poc,omitempty"`
	ShowValueArea   *bool `json:"show_value_area,omitempty"`
	ShowImbalance   *bool `json:"show_imbalance,omitempty"`
	ShowDepthLadder *bool `json:"show_depth_ladder,omitempty"`
	ShowGrid        *bool `json:"show_grid,omitempty"`
	ShowCrosshair   *bool `json:"show_crosshair,omitempty"`
	ShowCellText    *bool `json:"show_cell_text,omitempty"`

	ImbalanceRatio     *float64 `json:"imbalance_ratio,omitempty"`
	ImbalanceMinVolume *float64 `json:"imbalance_min_volume,omitempty"`
	ValueAreaPercent   *float64 `json:"value_area_percent,omitempty"`

	ActiveThemeID *string `json:"active_theme_id,omitempty"`
}

// Apply returns s with the patch's non-nil fields written over it.
func (p SettingsPatch) Apply(s Settings) Settings {
	setString(&s.Instrument, p.Instrument)
	if p.ChartType != nil {
		s.ChartType = *p.ChartType
	}
	setInt(&s.TimeframeMinutes, p.TimeframeMinutes)
	setInt(&s.TickMultiplier, p.TickMultiplier)
	setBool(&s.ShowHeatmap, p.ShowHeatmap)
	setBool(&s.ShowPOC, p.ShowPOC)
	setBool(&s.ShowValueArea, p.ShowValueArea)
	setBool(&s.ShowImbalance, p.ShowImbalance)
	setBool(&s.ShowDepthLadder, p.ShowDepthLadder)
	setBool(&s.ShowGrid, p.ShowGrid)
	setBool(&s.ShowCrosshair, p.ShowCrosshair)
	setBool(&s.ShowCellText, p.ShowCellText)
	setFloat(&s.ImbalanceRatio, p.ImbalanceRatio)
	setFloat(&s.ImbalanceMinVolume, p.ImbalanceMinVolume)
	setFloat(&s.ValueAreaPercent, p.ValueAreaPercent)
	setString(&s.ActiveThemeID, p.ActiveThemeID)
	return s
}

// AffectsAggregation reports whether going from a to b requires rebuilding the candle series.
func AffectsAggregation(a, b Settings) bool {
	return a.Instrument != b.Instrument ||
		a.TimeframeMinutes != b.TimeframeMinutes ||
		a.TickMultiplier != b.TickMultiplier ||
		a.ImbalanceRatio != b.ImbalanceRatio ||
		a.ImbalanceMinVolume != b.ImbalanceMinVolume ||
		a.ValueAreaPercent != b.ValueAreaPercent
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// ChartSnapshot is the persisted per-chart record of settings and camera.
type ChartSnapshot struct {
	ChartID   string     `json:"chart_id"`
	Settings  Settings   `json:"settings"`
	View      *ViewState `json:"view,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
