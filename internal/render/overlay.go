package render

import (
	"fmt"
	"math"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	axisFont      = 10.0
	labelPad      = 4.0
	priceTickGap  = 40.0
	timeTickGap   = 100.0
	ladderMaxBars = 60.0
)

// Crosshair is the pointer position shown by the overlay.
type Crosshair struct {
	X, Y    float64
	Visible bool
}

// VectorRenderer builds the overlay scene: grid, levels, ladder, axes,
// drawings and crosshair.
type VectorRenderer struct {
	scene *Scene
}

func NewVectorRenderer() *VectorRenderer {
	return &VectorRenderer{scene: NewScene()}
}

// Scene is the retained node tree, also the interaction surface.
func (v *VectorRenderer) Scene() *Scene { return v.scene }

// Flush paints the scene onto s.
func (v *VectorRenderer) Flush(s Surface) error {
	return v.scene.Flush(s)
}

// priceTicks returns the horizontal grid prices and their step.
func (f *Frame) priceTicks() ([]float64, float64) {
	n := int(f.Layout.ChartHeight() / priceTickGap)
	lo, hi := math.Min(f.Y.D0, f.Y.D1), math.Max(f.Y.D0, f.Y.D1)
	return f.Y.Ticks(n), TickStep(lo, hi, n)
}

// timeTicks returns whole candle indices for vertical grid lines.
func (f *Frame) timeTicks() []int {
	n := int(f.Layout.ChartWidth() / timeTickGap)
	lo, hi := math.Min(f.X.D0, f.X.D1), math.Max(f.X.D0, f.X.D1)
	step := int(math.Ceil(TickStep(lo, hi, n)))
	if step < 1 {
		step = 1
	}
	var out []int
	for i := int(math.Ceil(lo/float64(step))) * step; float64(i) < hi; i += step {
		out = append(out, i)
	}
	return out
}

// Grid rebuilds the grid group.
func (v *VectorRenderer) Grid(f *Frame) {
	g := v.scene.Reset(GroupGrid)
	if !f.Settings.ShowGrid {
		return
	}
	pal := parsePalette(f.Theme.Colors)
	st := Style{Stroke: pal.grid, StrokeWidth: 1}
	w, h := f.Layout.ChartWidth(), f.Layout.ChartHeight()
	prices, _ := f.priceTicks()
	for _, p := range prices {
		y := math.Round(f.Y.Map(p)) + 0.5
		g.Line(0, y, w, y, st)
	}
	for _, i := range f.timeTicks() {
		x := math.Round(f.X.Map(float64(i)+0.5)) + 0.5
		g.Line(x, 0, x, h, st)
	}
}

// Levels rebuilds the POC and value area lines.
func (v *VectorRenderer) Levels(f *Frame) {
	g := v.scene.Reset(GroupLevels)
	pal := parsePalette(f.Theme.Colors)
	for i := range f.Candles {
		c := &f.Candles[i]
		if c.Empty {
			continue
		}
		x0, x1 := f.column(f.StartIndex + i)
		if f.Settings.ShowValueArea && c.ValueAreaVolume > 0 {
			st := Style{Stroke: pal.valueArea, StrokeWidth: 1, Dash: []float64{3, 2}}
			for _, p := range []float64{c.ValueAreaHigh, c.ValueAreaLow} {
				y := f.Y.Map(p)
				g.Line(x0, y, x1, y, st)
			}
		}
		if f.Settings.ShowPOC {
			for _, p := range c.POC {
				y := f.Y.Map(p)
				g.Line(x0, y, x1, y, Style{Stroke: pal.poc, StrokeWidth: 2})
			}
		}
	}
}

// Ladder rebuilds the depth ladder to the right of the newest candle. It is
// hidden when the newest candle is scrolled out of view.
func (v *VectorRenderer) Ladder(f *Frame) {
	g := v.scene.Reset(GroupLadder)
	if !f.Settings.ShowDepthLadder || f.Last == nil || f.Last.Empty {
		return
	}
	x := f.X.Map(float64(f.Total)) + labelPad
	w := f.Layout.ChartWidth()
	if x < 0 || x >= w {
		return
	}
	maxVol := f.Last.MaxLevelVolume()
	if maxVol <= 0 {
		return
	}
	pal := parsePalette(f.Theme.Colors)
	width := math.Min(ladderMaxBars, w-x)
	for _, l := range f.Last.VolumeProfile {
		top, bottom := f.row(l.Price)
		h := math.Max(bottom-top-cellGap, 1)
		sw := width * l.SellVolume / maxVol
		bw := width * l.BuyVolume / maxVol
		if sw > 0 {
			g.Rect(x, top, sw, h, Style{Fill: withOpacity(pal.sell, 0.8)})
		}
		if bw > 0 {
			g.Rect(x+sw, top, bw, h, Style{Fill: withOpacity(pal.buy, 0.8)})
		}
		if h >= minTextRow && x+sw+bw+labelPad < w {
			g.Text(FormatVolume(l.TotalVolume), x+sw+bw+2, top+h/2, Style{FontSize: math.Min(maxCellFont, h*0.8), FontColor: pal.ladder})
		}
	}
}

// Axes rebuilds both axis strips and their labels.
func (v *VectorRenderer) Axes(f *Frame) {
	g := v.scene.Reset(GroupAxes)
	pal := parsePalette(f.Theme.Colors)
	l := f.Layout
	w, h := l.ChartWidth(), l.ChartHeight()
	g.Rect(w, 0, float64(l.PriceAxisWidth), float64(l.Height), Style{Fill: pal.background})
	g.Rect(0, h, w, float64(l.TimeAxisHeight), Style{Fill: pal.background})
	border := Style{Stroke: pal.axis, StrokeWidth: 1}
	g.Line(w+0.5, 0, w+0.5, h, border)
	g.Line(0, h+0.5, w, h+0.5, border)

	label := Style{FontSize: axisFont, FontColor: pal.text}
	prices, step := f.priceTicks()
	for _, p := range prices {
		y := f.Y.Map(p)
		if y < axisFont/2 || y > h-axisFont/2 {
			continue
		}
		g.Line(w, y, w+3, y, border)
		g.Text(FormatPrice(p, step), w+labelPad+2, y, label)
	}
	label.Align = AlignCenter
	for _, i := range f.timeTicks() {
		x := f.X.Map(float64(i) + 0.5)
		if x < 0 || x > w {
			continue
		}
		g.Line(x, h, x, h+3, border)
		g.Text(FormatTime(int64(f.TimeAt(float64(i))), f.IntervalMs), x, h+float64(l.TimeAxisHeight)/2, label)
	}
}

// Drawings rebuilds the user drawings. draft is the shape being drawn, if any.
func (v *VectorRenderer) Drawings(f *Frame, drawings []models.Drawing, draft *models.Drawing) {
	g := v.scene.Reset(GroupDrawings)
	pal := parsePalette(f.Theme.Colors)
	for _, d := range drawings {
		if d.Visible {
			v.drawing(g, f, pal, d, false)
		}
	}
	if draft != nil {
		v.drawing(g, f, pal, *draft, true)
	}
	g.Keyed("")
}

func (v *VectorRenderer) drawing(g *Group, f *Frame, pal palette, d models.Drawing, draft bool) {
	g.Keyed(d.ID)
	col := ParseColor(d.Color)
	if col.A == 0 {
		col = pal.draw
	}
	st := Style{Stroke: col, StrokeWidth: 1.5}
	if d.Selected {
		st.StrokeWidth = 2.5
	}
	if draft {
		st.Dash = []float64{4, 3}
	}
	for _, line := range Shape(f, d) {
		g.Path(line, false, st)
	}
	switch d.Type {
	case models.DrawingHorizontal:
		if len(d.Points) > 0 {
			v.axisBox(g, f, pal, FormatPrice(d.Points[0].Price, f.TickSize), f.Y.Map(d.Points[0].Price), col)
		}
	case models.DrawingFib:
		if len(d.Points) >= 2 {
			x := math.Min(f.ToPixel(d.Points[0]).X, f.ToPixel(d.Points[1]).X)
			for _, lvl := range models.FibLevels {
				p := FibPrice(d.Points[0].Price, d.Points[1].Price, lvl)
				body := fmt.Sprintf("%s%% %s", FormatVolume(lvl*100), FormatPrice(p, f.TickSize))
				g.Text(body, x+2, f.Y.Map(p)-axisFont/2-1, Style{FontSize: axisFont, FontColor: col})
			}
		}
	}
	if d.Selected && !draft {
		for _, a := range Anchors(f, d) {
			g.Circle(a.X, a.Y, AnchorRadius, Style{Fill: pal.background, Stroke: pal.selection, StrokeWidth: 1.5})
		}
	}
}

// axisBox draws a filled label on the price axis centred on y.
func (v *VectorRenderer) axisBox(g *Group, f *Frame, pal palette, body string, y float64, fill drawing.Color) {
	w := f.Layout.ChartWidth()
	if y < 0 || y > f.Layout.ChartHeight() {
		return
	}
	bh := axisFont + 6
	g.Rect(w, y-bh/2, float64(f.Layout.PriceAxisWidth), bh, Style{Fill: fill})
	g.Text(body, w+labelPad+2, y, Style{FontSize: axisFont, FontColor: pal.selection})
}

// Crosshair rebuilds the crosshair lines and readout boxes.
func (v *VectorRenderer) Crosshair(f *Frame, s Surface, ch Crosshair) {
	g := v.scene.Reset(GroupCrosshair)
	if !f.Settings.ShowCrosshair || !ch.Visible || !f.Layout.InChart(ch.X, ch.Y) {
		return
	}
	pal := parsePalette(f.Theme.Colors)
	w, h := f.Layout.ChartWidth(), f.Layout.ChartHeight()
	st := Style{Stroke: pal.crosshair, StrokeWidth: 1, Dash: []float64{4, 4}}
	g.Line(0, ch.Y, w, ch.Y, st)
	g.Line(ch.X, 0, ch.X, h, st)

	_, step := f.priceTicks()
	if f.TickSize > 0 && f.TickSize < step {
		step = f.TickSize
	}
	v.axisBox(g, f, pal, FormatPrice(f.Y.Invert(ch.Y), step), ch.Y, pal.crosshair)

	body := FormatCrosshairTime(int64(f.TimeAt(math.Floor(f.X.Invert(ch.X)))))
	tw, _ := s.MeasureText(body, axisFont)
	bw := tw + 2*labelPad
	bx := clamp(ch.X-bw/2, 0, math.Max(w-bw, 0))
	g.Rect(bx, h, bw, float64(f.Layout.TimeAxisHeight), Style{Fill: pal.crosshair})
	g.Text(body, bx+bw/2, h+float64(f.Layout.TimeAxisHeight)/2, Style{FontSize: axisFont, FontColor: pal.selection, Align: AlignCenter})
}
