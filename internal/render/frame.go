package render

import (
	"math"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Frame is everything one render pass needs. Both layers map data through
// the same X and Y scales so they stay aligned.
type Frame struct {
	Layout Layout
	// X maps fractional candle index to x; candle i spans [X.Map(i), X.Map(i+1)).
	X LinearScale
	// Y maps price to y.
	Y LinearScale

	// Candles is the visible slice; Candles[0] has index StartIndex.
	Candles    []models.FootprintCandle
	StartIndex int
	// Total is the length of the full series.
	Total int
	// Last is the newest candle of the full series, if any.
	Last *models.FootprintCandle

	// OriginMs is the open time of candle index 0.
	OriginMs   int64
	IntervalMs int64
	TickSize   float64

	Settings models.Settings
	Theme    models.Theme
}

// TimeAt converts a fractional candle index to epoch milliseconds.
func (f *Frame) TimeAt(index float64) float64 {
	return float64(f.OriginMs) + index*float64(f.IntervalMs)
}

// IndexAt converts epoch milliseconds to a fractional candle index.
func (f *Frame) IndexAt(ms float64) float64 {
	if f.IntervalMs <= 0 {
		return 0
	}
	return (ms - float64(f.OriginMs)) / float64(f.IntervalMs)
}

// ToPixel maps a drawing anchor to surface pixels.
func (f *Frame) ToPixel(p models.DrawingPoint) Point {
	return Point{X: f.X.Map(f.IndexAt(p.TimestampMs)), Y: f.Y.Map(p.Price)}
}

// FromPixel maps surface pixels to a drawing anchor.
func (f *Frame) FromPixel(x, y float64) models.DrawingPoint {
	return models.DrawingPoint{Price: f.Y.Invert(y), TimestampMs: f.TimeAt(f.X.Invert(x))}
}

// column returns the x extent of candle index i.
func (f *Frame) column(i int) (x0, x1 float64) {
	return f.X.Map(float64(i)), f.X.Map(float64(i + 1))
}

// row returns the y extent of the tick cell centred on price.
func (f *Frame) row(price float64) (top, bottom float64) {
	half := f.TickSize / 2
	top, bottom = f.Y.Map(price+half), f.Y.Map(price-half)
	if top > bottom {
		top, bottom = bottom, top
	}
	return top, bottom
}

// MaxLevel returns the largest buy, sell, total and absolute delta of any
// level in the visible window.
func (f *Frame) MaxLevel() (buy, sell, total, delta float64) {
	for i := range f.Candles {
		for _, l := range f.Candles[i].VolumeProfile {
			buy = math.Max(buy, l.BuyVolume)
			sell = math.Max(sell, l.SellVolume)
			total = math.Max(total, l.TotalVolume)
			delta = math.Max(delta, math.Abs(l.BuyVolume-l.SellVolume))
		}
	}
	return buy, sell, total, delta
}

// palette is a theme with its colors parsed.
type palette struct {
	background, grid, axis, text drawing.Color
	up, down, buy, sell          drawing.Color
	poc, valueArea, imbalance    drawing.Color
	crosshair, draw, selection   drawing.Color
	ladder                       drawing.Color
	heatmap                      ColorScale
}

func parsePalette(p models.Palette) palette {
	pick := func(hex, fallback string) drawing.Color {
		if c := ParseColor(hex); c.A > 0 {
			return c
		}
		return ParseColor(fallback)
	}
	return palette{
		background: pick(p.Background, "#131722"),
		grid:       pick(p.Grid, "#2a2e39"),
		axis:       pick(p.Axis, "#363a45"),
		text:       pick(p.Text, "#d1d4dc"),
		up:         pick(p.Up, "#26a69a"),
		down:       pick(p.Down, "#ef5350"),
		buy:        pick(p.Buy, "#26a69a"),
		sell:       pick(p.Sell, "#ef5350"),
		poc:        pick(p.POC, "#ffeb3b"),
		valueArea:  pick(p.ValueArea, "#42a5f5"),
		imbalance:  pick(p.Imbalance, "#ff9800"),
		crosshair:  pick(p.Crosshair, "#9598a1"),
		draw:       pick(p.Drawing, "#2962ff"),
		selection:  pick(p.Selection, "#ffffff"),
		ladder:     pick(p.Ladder, "#787b86"),
		heatmap:    NewColorScale(p.Heatmap),
	}
}
