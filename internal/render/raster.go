package render

import (
	"math"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	// bodyFraction is the share of a column used by the candlestick when
	// footprint cells are drawn next to it.
	bodyFraction = 0.15
	cellGap      = 1.0
	minTextRow   = 9.0
	minTextCell  = 18.0
	maxCellFont  = 11.0
	heatmapAlpha = 0.55
)

// RasterRenderer paints the dense layer. It keeps no state between calls:
// every frame is cleared and repainted in full.
type RasterRenderer struct{}

func NewRasterRenderer() *RasterRenderer {
	return &RasterRenderer{}
}

// Clear paints the theme background.
func (r *RasterRenderer) Clear(s Surface, f *Frame) error {
	return s.Clear(parsePalette(f.Theme.Colors).background)
}

// Render runs the raster steps for the frame's chart type.
func (r *RasterRenderer) Render(s Surface, f *Frame) error {
	if err := r.Clear(s, f); err != nil {
		return err
	}
	if f.Settings.ShowHeatmap {
		r.Heatmap(s, f)
	}
	if f.Settings.ChartType == models.ChartDots {
		r.Dots(s, f)
	} else {
		r.Candlesticks(s, f)
		r.Footprint(s, f)
	}
	return s.Err()
}

// Heatmap shades every level of every visible candle by its volume
// relative to the largest level in view.
func (r *RasterRenderer) Heatmap(s Surface, f *Frame) {
	pal := parsePalette(f.Theme.Colors)
	_, _, maxTotal, _ := f.MaxLevel()
	if maxTotal <= 0 {
		return
	}
	for i := range f.Candles {
		x0, x1 := f.column(f.StartIndex + i)
		for _, l := range f.Candles[i].VolumeProfile {
			top, bottom := f.row(l.Price)
			c := pal.heatmap.At(l.TotalVolume / maxTotal)
			s.Rect(x0, top, x1-x0, bottom-top, Style{Fill: withOpacity(c, heatmapAlpha)})
		}
	}
}

// Candlesticks draws body and wick in the left strip of each column, or
// across the full column when footprint cells are disabled by zoom.
func (r *RasterRenderer) Candlesticks(s Surface, f *Frame) {
	pal := parsePalette(f.Theme.Colors)
	for i := range f.Candles {
		c := &f.Candles[i]
		if c.Empty {
			continue
		}
		x0, x1 := f.column(f.StartIndex + i)
		w := (x1 - x0) * bodyFraction
		if !f.showCells(x1 - x0) {
			w = (x1 - x0) * 0.7
		}
		w = math.Max(w, 1)
		bx := x0 + (x1-x0)*0.05
		col := pal.up
		if c.Close < c.Open {
			col = pal.down
		}
		mid := bx + w/2
		s.Line(mid, f.Y.Map(c.High), mid, f.Y.Map(c.Low), Style{Stroke: col, StrokeWidth: 1})
		top, bottom := f.Y.Map(math.Max(c.Open, c.Close)), f.Y.Map(math.Min(c.Open, c.Close))
		s.Rect(bx, top, w, math.Max(bottom-top, 1), Style{Fill: col})
	}
}

// showCells reports whether a column is wide enough for footprint cells.
func (f *Frame) showCells(colWidth float64) bool {
	return colWidth >= 12
}

// Footprint draws the per-level cells according to the chart type.
func (r *RasterRenderer) Footprint(s Surface, f *Frame) {
	pal := parsePalette(f.Theme.Colors)
	maxBuy, maxSell, maxTotal, maxDelta := f.MaxLevel()
	for i := range f.Candles {
		c := &f.Candles[i]
		if c.Empty || len(c.VolumeProfile) == 0 {
			continue
		}
		x0, x1 := f.column(f.StartIndex + i)
		if !f.showCells(x1 - x0) {
			continue
		}
		cx := x0 + (x1-x0)*(bodyFraction+0.1)
		cw := x1 - cx - (x1-x0)*0.05
		for _, l := range c.VolumeProfile {
			top, bottom := f.row(l.Price)
			h := math.Max(bottom-top-cellGap, 1)
			switch f.Settings.ChartType {
			case models.ChartVolume:
				col := pal.buy
				if l.SellVolume > l.BuyVolume {
					col = pal.sell
				}
				r.cell(s, f, cx, top, cw, h, col, Opacity(l.TotalVolume, maxTotal), FormatVolume(l.TotalVolume), pal.text)
			case models.ChartDelta:
				d := l.BuyVolume - l.SellVolume
				col := pal.buy
				if d < 0 {
					col = pal.sell
				}
				label := FormatVolume(d)
				if d > 0 {
					label = "+" + label
				}
				r.cell(s, f, cx, top, cw, h, col, Opacity(math.Abs(d), maxDelta), label, pal.text)
			default:
				half := (cw - cellGap) / 2
				r.cell(s, f, cx, top, half, h, pal.sell, Opacity(l.SellVolume, maxSell), FormatVolume(l.SellVolume), pal.text)
				r.cell(s, f, cx+half+cellGap, top, half, h, pal.buy, Opacity(l.BuyVolume, maxBuy), FormatVolume(l.BuyVolume), pal.text)
				if f.Settings.ShowImbalance {
					switch l.Imbalance {
					case models.ImbalanceSell:
						s.Rect(cx, top, half, h, Style{Stroke: pal.imbalance, StrokeWidth: 1})
					case models.ImbalanceBuy:
						s.Rect(cx+half+cellGap, top, half, h, Style{Stroke: pal.imbalance, StrokeWidth: 1})
					}
				}
			}
		}
	}
}

// cell fills one footprint cell and labels it when there is room.
func (r *RasterRenderer) cell(s Surface, f *Frame, x, y, w, h float64, col drawing.Color, opacity float64, label string, text drawing.Color) {
	if opacity > 0 {
		s.Rect(x, y, w, h, Style{Fill: withOpacity(col, opacity)})
	}
	if !f.Settings.ShowCellText || h < minTextRow || w < minTextCell {
		return
	}
	size := math.Min(maxCellFont, h*0.8)
	if tw, _ := s.MeasureText(label, size); tw > w-2 {
		return
	}
	s.Text(label, x+w/2, y+h/2, Style{FontSize: size, FontColor: text, Align: AlignCenter})
}

// Dots marks each candle's primary POC with a circle whose area follows the
// candle volume.
func (r *RasterRenderer) Dots(s Surface, f *Frame) {
	pal := parsePalette(f.Theme.Colors)
	var maxVol float64
	for i := range f.Candles {
		maxVol = math.Max(maxVol, f.Candles[i].TotalVolume)
	}
	if maxVol <= 0 {
		return
	}
	for i := range f.Candles {
		c := &f.Candles[i]
		poc, ok := c.PrimaryPOC()
		if c.Empty || !ok {
			continue
		}
		x0, x1 := f.column(f.StartIndex + i)
		w := x1 - x0
		radius := clamp(math.Sqrt(c.TotalVolume/maxVol)*w*0.45, 2, math.Max(w/2, 2))
		col := pal.up
		if c.Close < c.Open {
			col = pal.down
		}
		s.Circle(x0+w/2, f.Y.Map(poc), radius, Style{Fill: withOpacity(col, 0.7), Stroke: col, StrokeWidth: 1})
	}
}
