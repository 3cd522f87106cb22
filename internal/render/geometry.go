package render

import (
	"math"

	"github.com/navid-fn/footprint/internal/models"
)

// AnchorRadius is the drawn radius of a selection handle.
const AnchorRadius = 5.0

// Shape returns the polylines a drawing occupies on the frame, in pixels.
// Lines and rays yield one segment, fib one segment per level, pen one
// polyline. Drawings with too few points yield nothing.
func Shape(f *Frame, d models.Drawing) [][]Point {
	pts := make([]Point, len(d.Points))
	for i, p := range d.Points {
		pts[i] = f.ToPixel(p)
	}
	w := f.Layout.ChartWidth()
	switch d.Type {
	case models.DrawingHorizontal:
		if len(pts) < 1 {
			return nil
		}
		return [][]Point{{{X: 0, Y: pts[0].Y}, {X: w, Y: pts[0].Y}}}
	case models.DrawingTrendline:
		if len(pts) < 2 {
			return nil
		}
		return [][]Point{{pts[0], pts[1]}}
	case models.DrawingRay:
		if len(pts) < 2 {
			return nil
		}
		return [][]Point{{pts[0], RayEnd(pts[0], pts[1], w, f.Layout.ChartHeight())}}
	case models.DrawingFib:
		if len(pts) < 2 {
			return nil
		}
		x0, x1 := math.Min(pts[0].X, pts[1].X), math.Max(pts[0].X, pts[1].X)
		out := make([][]Point, 0, len(models.FibLevels))
		for _, lvl := range models.FibLevels {
			y := f.Y.Map(FibPrice(d.Points[0].Price, d.Points[1].Price, lvl))
			out = append(out, []Point{{X: x0, Y: y}, {X: x1, Y: y}})
		}
		return out
	case models.DrawingPen:
		if len(pts) < 2 {
			return nil
		}
		return [][]Point{pts}
	}
	return nil
}

// FibPrice is the retracement price of level lvl between the first anchor
// p0 and the second anchor p1. Level 0 sits on p1, level 1 on p0.
func FibPrice(p0, p1, lvl float64) float64 {
	return p1 - (p1-p0)*lvl
}

// Anchors returns the handle positions of a drawing. Pen strokes have none.
func Anchors(f *Frame, d models.Drawing) []Point {
	if d.Type == models.DrawingPen {
		return nil
	}
	out := make([]Point, len(d.Points))
	for i, p := range d.Points {
		out[i] = f.ToPixel(p)
	}
	return out
}

// RayEnd extends the ray from a through b to the edge of a w by h box.
func RayEnd(a, b Point, w, h float64) Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return b
	}
	t := math.Inf(1)
	if dx > 0 {
		t = math.Min(t, (w-a.X)/dx)
	} else if dx < 0 {
		t = math.Min(t, -a.X/dx)
	}
	if dy > 0 {
		t = math.Min(t, (h-a.Y)/dy)
	} else if dy < 0 {
		t = math.Min(t, -a.Y/dy)
	}
	if t < 1 {
		t = 1
	}
	return Point{X: a.X + dx*t, Y: a.Y + dy*t}
}

// SegmentDistance is the distance from p to the segment ab.
func SegmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := clamp(((p.X-a.X)*dx+(p.Y-a.Y)*dy)/l2, 0, 1)
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// PolylineDistance is the distance from p to the nearest segment of line.
func PolylineDistance(p Point, line []Point) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return math.Hypot(p.X-line[0].X, p.Y-line[0].Y)
	}
	best := math.Inf(1)
	for i := 1; i < len(line); i++ {
		best = math.Min(best, SegmentDistance(p, line[i-1], line[i]))
	}
	return best
}

// ShapeDistance is the distance from p to the nearest part of a drawing.
// Horizontal lines measure the vertical band distance only.
func ShapeDistance(f *Frame, d models.Drawing, p Point) float64 {
	if d.Type == models.DrawingHorizontal && len(d.Points) > 0 {
		return math.Abs(p.Y - f.Y.Map(d.Points[0].Price))
	}
	best := math.Inf(1)
	for _, line := range Shape(f, d) {
		best = math.Min(best, PolylineDistance(p, line))
	}
	return best
}
