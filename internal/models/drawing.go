package models

import "time"

// DrawingType is the kind of user annotation.
type DrawingType string

const (
	DrawingTrendline  DrawingType = "trendline"
	DrawingRay        DrawingType = "ray"
	DrawingHorizontal DrawingType = "horizontal"
	DrawingFib        DrawingType = "fib"
	DrawingPen        DrawingType = "pen"
)

// Valid reports whether t is a known drawing type.
func (t DrawingType) Valid() bool {
	switch t {
	case DrawingTrendline, DrawingRay, DrawingHorizontal, DrawingFib, DrawingPen:
		return true
	}
	return false
}

// AnchorCount is the number of clicks needed to complete the shape.
// Zero means unbounded (free-hand).
func (t DrawingType) AnchorCount() int {
	switch t {
	case DrawingHorizontal:
		return 1
	case DrawingPen:
		return 0
	default:
		return 2
	}
}

// FibLevels are the retracement ratios drawn between the two fib anchors.
var FibLevels = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

// DrawingPoint is an anchor in data space.
type DrawingPoint struct {
	Price       float64 `json:"price"`
	TimestampMs float64 `json:"timestamp_ms"`
}

// Drawing is a user annotation on the chart.
type Drawing struct {
	ID       string         `json:"id"`
	ChartID  string         `json:"chart_id"`
	Type     DrawingType    `json:"type"`
	Points   []DrawingPoint `json:"points"`
	Color    string         `json:"color"`
	Selected bool           `json:"selected"`
	Locked   bool           `json:"locked"`
	Visible  bool           `json:"visible"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that does not share the points slice.
func (d Drawing) Clone() Drawing {
	d.Points = append([]DrawingPoint(nil), d.Points...)
	return d
}

// Tool is the active interaction tool.
type Tool string

const (
	ToolSelect     Tool = "select"
	ToolTrendline  Tool = Tool(DrawingTrendline)
	ToolRay        Tool = Tool(DrawingRay)
	ToolHorizontal Tool = Tool(DrawingHorizontal)
	ToolFib        Tool = Tool(DrawingFib)
	ToolPen        Tool = Tool(DrawingPen)
)

// DrawingType returns the shape a tool creates; ok is false for the select tool.
func (t Tool) DrawingType() (DrawingType, bool) {
	dt := DrawingType(t)
	return dt, dt.Valid()
}
