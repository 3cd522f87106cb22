package render

import (
	"math"
)

// LinearScale maps the domain [D0, D1] onto the range [R0, R1].
type LinearScale struct {
	D0, D1 float64
	R0, R1 float64
}

// Map converts a domain value to range space.
func (s LinearScale) Map(v float64) float64 {
	if s.D1 == s.D0 {
		return (s.R0 + s.R1) / 2
	}
	return s.R0 + (v-s.D0)/(s.D1-s.D0)*(s.R1-s.R0)
}

// Invert converts a range value back to the domain.
func (s LinearScale) Invert(px float64) float64 {
	if s.R1 == s.R0 {
		return (s.D0 + s.D1) / 2
	}
	return s.D0 + (px-s.R0)/(s.R1-s.R0)*(s.D1-s.D0)
}

// Span is the absolute range length of one domain unit.
func (s LinearScale) Span(units float64) float64 {
	return math.Abs(s.Map(units) - s.Map(0))
}

// Ticks returns round domain values inside the domain, about count of them.
func (s LinearScale) Ticks(count int) []float64 {
	lo, hi := math.Min(s.D0, s.D1), math.Max(s.D0, s.D1)
	step := TickStep(lo, hi, count)
	if step <= 0 {
		return nil
	}
	start := math.Ceil(lo/step - 1e-9)
	stop := math.Floor(hi/step + 1e-9)
	out := make([]float64, 0, int(stop-start)+1)
	for i := start; i <= stop; i++ {
		out = append(out, roundTo(i*step, step))
	}
	return out
}

// TickStep picks a 1, 2 or 5 times power-of-ten step giving about count ticks.
func TickStep(lo, hi float64, count int) float64 {
	if count < 1 {
		count = 1
	}
	span := hi - lo
	if span <= 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return 0
	}
	raw := span / float64(count)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	const eps = 1e-9
	switch norm := raw / mag; {
	case norm <= 1+eps:
		return mag
	case norm <= 2+eps:
		return 2 * mag
	case norm <= 5+eps:
		return 5 * mag
	default:
		return 10 * mag
	}
}

// roundTo removes float noise from multiples of step.
func roundTo(v, step float64) float64 {
	digits := math.Max(0, -math.Floor(math.Log10(step))+1)
	p := math.Pow(10, digits)
	return math.Round(v*p) / p
}

// Layout splits the surface into the chart area and the two axis strips.
// The price axis sits on the right, the time axis at the bottom.
type Layout struct {
	Width          int
	Height         int
	PriceAxisWidth int
	TimeAxisHeight int
}

const (
	DefaultPriceAxisWidth = 60
	DefaultTimeAxisHeight = 24
)

// NewLayout uses the default axis sizes.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:          width,
		Height:         height,
		PriceAxisWidth: DefaultPriceAxisWidth,
		TimeAxisHeight: DefaultTimeAxisHeight,
	}
}

func (l Layout) ChartWidth() float64 {
	return math.Max(1, float64(l.Width-l.PriceAxisWidth))
}

func (l Layout) ChartHeight() float64 {
	return math.Max(1, float64(l.Height-l.TimeAxisHeight))
}

// InChart reports whether (x, y) lies in the plotting area.
func (l Layout) InChart(x, y float64) bool {
	return x >= 0 && x < l.ChartWidth() && y >= 0 && y < l.ChartHeight()
}

// InPriceAxis reports whether (x, y) lies on the price axis strip.
func (l Layout) InPriceAxis(x, y float64) bool {
	return x >= l.ChartWidth() && x < float64(l.Width) && y >= 0 && y < l.ChartHeight()
}

// InTimeAxis reports whether (x, y) lies on the time axis strip.
func (l Layout) InTimeAxis(x, y float64) bool {
	return y >= l.ChartHeight() && y < float64(l.Height) && x >= 0 && x < l.ChartWidth()
}

// IndexScale maps fractional candle index to x. Candle i spans [Map(i), Map(i+1)).
func (l Layout) IndexScale(offset, count float64) LinearScale {
	return LinearScale{D0: offset, D1: offset + count, R0: 0, R1: l.ChartWidth()}
}

// PriceScale maps price to y with low prices at the bottom.
func (l Layout) PriceScale(low, high float64) LinearScale {
	return LinearScale{D0: low, D1: high, R0: l.ChartHeight(), R1: 0}
}
