// Package render draws footprint charts. The raster layer repaints dense
// visuals every frame; the vector overlay keeps a retained scene of sparse,
// crisp visuals. Both paint through the Surface interface so the same code
// runs against go-chart PNG/SVG renderers or a headless recorder.
package render

import (
	"errors"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrReleased is reported by surfaces used after Release.
var ErrReleased = errors.New("render surface released")

// Point is a position in CSS pixels.
type Point struct {
	X, Y float64
}

// Align is horizontal text alignment relative to the anchor x.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Style describes how a primitive is painted. A zero-alpha color is not painted.
type Style struct {
	Fill        drawing.Color
	Stroke      drawing.Color
	StrokeWidth float64
	Dash        []float64

	FontSize  float64
	FontColor drawing.Color
	Align     Align
}

// Surface is the minimal drawing target shared by both layers. Coordinates
// are CSS pixels; implementations scale by the device pixel ratio.
type Surface interface {
	Resize(width, height int, pixelRatio float64) error
	Size() (width, height int, pixelRatio float64)
	Clear(bg drawing.Color) error

	Rect(x, y, w, h float64, st Style)
	Line(x1, y1, x2, y2 float64, st Style)
	Path(points []Point, closed bool, st Style)
	Circle(cx, cy, r float64, st Style)

	// Text draws body with its vertical middle at y.
	Text(body string, x, y float64, st Style)
	MeasureText(body string, fontSize float64) (width, height float64)

	// Err returns the first error hit since the last Clear.
	Err() error
	Release()
}

// ParseColor reads "#rgb", "#rrggbb" or "#rrggbbaa". Invalid input yields
// a transparent color.
func ParseColor(hex string) drawing.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	switch len(hex) {
	case 3, 6:
		return drawing.ColorFromHex(hex)
	case 8:
		c := drawing.ColorFromHex(hex[:6])
		a := drawing.ColorFromHex(hex[6:] + hex[6:] + hex[6:])
		return c.WithAlpha(a.R)
	}
	return drawing.Color{}
}

// withOpacity scales the color's alpha by o in [0, 1].
func withOpacity(c drawing.Color, o float64) drawing.Color {
	o = clamp(o, 0, 1)
	return c.WithAlpha(uint8(float64(c.A)*o + 0.5))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
