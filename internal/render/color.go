package render

import (
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ColorScale interpolates linearly between evenly spaced color stops.
type ColorScale struct {
	stops []drawing.Color
}

// DefaultHeatmap is used when a theme defines no heatmap stops.
var DefaultHeatmap = []string{"#0d0887", "#6a00a8", "#b12a90", "#e16462", "#fca636", "#f0f921"}

// NewColorScale parses hex stops. Fewer than two valid stops fall back to DefaultHeatmap.
func NewColorScale(hexStops []string) ColorScale {
	var stops []drawing.Color
	for _, h := range hexStops {
		if c := ParseColor(h); c.A > 0 {
			stops = append(stops, c)
		}
	}
	if len(stops) < 2 && len(hexStops) != 0 {
		return NewColorScale(DefaultHeatmap)
	}
	if len(stops) < 2 {
		stops = nil
		for _, h := range DefaultHeatmap {
			stops = append(stops, ParseColor(h))
		}
	}
	return ColorScale{stops: stops}
}

// At returns the color at t in [0, 1].
func (s ColorScale) At(t float64) drawing.Color {
	if len(s.stops) == 0 {
		return drawing.Color{}
	}
	t = clamp(t, 0, 1)
	pos := t * float64(len(s.stops)-1)
	i := int(pos)
	if i >= len(s.stops)-1 {
		return s.stops[len(s.stops)-1]
	}
	return lerpColor(s.stops[i], s.stops[i+1], pos-float64(i))
}

func lerpColor(a, b drawing.Color, t float64) drawing.Color {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return drawing.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// Opacity maps v relative to max onto [0.08, 1], a floor that keeps thin
// levels visible. A non-positive max yields 0.
func Opacity(v, max float64) float64 {
	if max <= 0 || v <= 0 {
		return 0
	}
	return 0.08 + 0.92*clamp(v/max, 0, 1)
}
