package interaction

import (
	"math"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/render"
)

const (
	MinViewCount = 5
	MaxViewCount = 1000

	// zoomStep is the scale factor of one wheel notch.
	zoomStep = 1.1
	// axisDragRate sets how fast an axis drag scales: a full chart length
	// of drag scales by e^2.
	axisDragRate = 2.0
)

// ClampCount keeps the visible candle count within the zoom limits.
func ClampCount(count float64) float64 {
	return math.Max(MinViewCount, math.Min(MaxViewCount, count))
}

// priceDomain is the price range currently shown, explicit or auto-fit.
func priceDomain(f *render.Frame) (lo, hi float64) {
	return math.Min(f.Y.D0, f.Y.D1), math.Max(f.Y.D0, f.Y.D1)
}

// pan moves both axes with the pointer. Moving vertically switches the price
// axis to an explicit domain.
func (e *Engine) pan(ev PointerEvent) {
	f := e.startFrame
	v := e.startView
	dx, dy := ev.X-e.startX, ev.Y-e.startY
	v.ViewOffset -= dx / f.Layout.ChartWidth() * v.ViewCount
	if dy != 0 {
		lo, hi := priceDomain(f)
		shift := dy / f.Layout.ChartHeight() * (hi - lo)
		v = v.WithYDomain(lo+shift, hi+shift)
	}
	e.setView(v)
}

// axisDragX zooms the time axis keeping the right edge fixed. Dragging
// right zooms in.
func (e *Engine) axisDragX(ev PointerEvent) {
	f := e.startFrame
	v := e.startView
	dx := ev.X - e.startX
	count := ClampCount(v.ViewCount * math.Exp(-axisDragRate*dx/f.Layout.ChartWidth()))
	v.ViewOffset += v.ViewCount - count
	v.ViewCount = count
	e.setView(v)
}

// axisDragY scales the price axis about its centre. Dragging down widens
// the range.
func (e *Engine) axisDragY(ev PointerEvent) {
	f := e.startFrame
	dy := ev.Y - e.startY
	lo, hi := priceDomain(f)
	mid, half := (lo+hi)/2, (hi-lo)/2*math.Exp(axisDragRate*dy/f.Layout.ChartHeight())
	e.setView(e.startView.WithYDomain(mid-half, mid+half))
}

// HandleWheel applies the modifier-gated wheel gestures:
//
//	plain  pan price
//	Shift  pan time
//	Ctrl   zoom time anchored at the cursor
//	Alt    zoom price about the chart centre
func (e *Engine) HandleWheel(ev WheelEvent) {
	f := e.host.Frame()
	v := e.host.View()
	delta := ev.DeltaY
	if delta == 0 {
		delta = ev.DeltaX
	}
	if delta == 0 {
		return
	}
	w, h := f.Layout.ChartWidth(), f.Layout.ChartHeight()
	factor := zoomStep
	if delta < 0 {
		factor = 1 / zoomStep
	}

	switch {
	case ev.Ctrl || ev.Meta:
		v = ZoomTime(v, f.X, ev.X, factor)
	case ev.Alt:
		lo, hi := priceDomain(f)
		mid, half := (lo+hi)/2, (hi-lo)/2*factor
		v = v.WithYDomain(mid-half, mid+half)
	case ev.Shift:
		v.ViewOffset += delta / w * v.ViewCount
	default:
		lo, hi := priceDomain(f)
		shift := delta / h * (hi - lo)
		v = v.WithYDomain(lo-shift, hi-shift)
	}
	e.setView(v)
}

// ZoomTime scales the visible count by factor keeping the candle index under
// pixel x fixed.
func ZoomTime(v models.ViewState, x render.LinearScale, px, factor float64) models.ViewState {
	anchor := x.Invert(px)
	width := x.R1 - x.R0
	frac := 0.0
	if width != 0 {
		frac = (px - x.R0) / width
	}
	v.ViewCount = ClampCount(v.ViewCount * factor)
	v.ViewOffset = anchor - frac*v.ViewCount
	return v
}

// hitTest finds the drawing under p. Handles of the selected drawing win,
// then bodies from the top of the z-order down. Locked and hidden drawings
// never hit. anchor is -1 for a body hit.
func (e *Engine) hitTest(f *render.Frame, p render.Point) (id string, anchor int, ok bool) {
	drawings := e.host.Drawings()
	for _, d := range drawings {
		if !d.Selected || d.Locked || !d.Visible {
			continue
		}
		for i, a := range render.Anchors(f, d) {
			if math.Hypot(p.X-a.X, p.Y-a.Y) <= AnchorTolerance {
				return d.ID, i, true
			}
		}
	}
	for i := len(drawings) - 1; i >= 0; i-- {
		d := drawings[i]
		if d.Locked || !d.Visible {
			continue
		}
		if render.ShapeDistance(f, d, p) <= BodyTolerance {
			return d.ID, -1, true
		}
	}
	return "", -1, false
}

// HitTest reports the drawing under pixel (x, y), for callers outside a gesture.
func (e *Engine) HitTest(x, y float64) (id string, ok bool) {
	id, _, ok = e.hitTest(e.host.Frame(), render.Point{X: x, Y: y})
	return id, ok
}
