package chart

import (
	"math"

	"github.com/navid-fn/footprint/internal/interaction"
	"github.com/navid-fn/footprint/internal/models"
)

// yPadding is the share of the visible range added above and below when the
// price axis auto-fits.
const yPadding = 0.05

// visibleRange returns the slice bounds [floor(offset), ceil(offset+count))
// clamped to a series of n candles.
func visibleRange(v models.ViewState, n int) (start, end int) {
	start = int(math.Floor(v.ViewOffset))
	end = int(math.Ceil(v.ViewOffset + v.ViewCount))
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	return start, end
}

func clampView(v models.ViewState) models.ViewState {
	if math.IsNaN(v.ViewCount) || v.ViewCount <= 0 {
		v.ViewCount = DefaultViewCount
	}
	v.ViewCount = interaction.ClampCount(v.ViewCount)
	if math.IsNaN(v.ViewOffset) || math.IsInf(v.ViewOffset, 0) {
		v.ViewOffset = 0
	}
	if d := v.YDomain; d != nil {
		lo, hi := math.Min(d[0], d[1]), math.Max(d[0], d[1])
		if hi <= lo || math.IsNaN(lo) || math.IsNaN(hi) {
			v.YDomain = nil
		} else {
			v.YDomain = &[2]float64{lo, hi}
		}
	}
	return v
}

// defaultViewLocked shows the newest candles with the auto-fit price axis.
func (c *Controller) defaultViewLocked() models.ViewState {
	count := c.opts.InitialViewCount
	if count <= 0 {
		count = DefaultViewCount
	}
	count = interaction.ClampCount(count)
	return models.ViewState{ViewOffset: float64(len(c.candles)+rightMargin) - count, ViewCount: count}
}

// View returns the current view state.
func (c *Controller) View() models.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetView sets an explicit view. The visible count is clamped to the zoom
// limits.
func (c *Controller) SetView(v models.ViewState) error {
	return c.do(func() error {
		c.autoFit = false
		c.view = clampView(v)
		c.persistViewLocked()
		c.notifyViewLocked()
		return c.renderLocked()
	})
}

// ResetView returns to the newest candles with an auto-fit price axis and
// follows new data again.
func (c *Controller) ResetView() error {
	return c.do(func() error {
		c.autoFit = true
		c.view = c.defaultViewLocked()
		c.persistViewLocked()
		c.notifyViewLocked()
		return c.renderLocked()
	})
}

func (c *Controller) notifyViewLocked() {
	if cb := c.callbacks.OnViewChange; cb != nil {
		v := c.view
		c.after(func() { cb(v) })
	}
}

// priceDomainLocked is the price range the current view draws.
func (c *Controller) priceDomainLocked() (lo, hi float64) {
	start, end := visibleRange(c.view, len(c.candles))
	return priceDomain(c.view, c.candles[start:end], c.agg.Params().EffectiveTickSize())
}

// priceDomain is the explicit domain, or the visible high/low padded by
// yPadding.
func priceDomain(v models.ViewState, visible []models.FootprintCandle, tick float64) (lo, hi float64) {
	if v.YDomain != nil {
		return v.YDomain[0], v.YDomain[1]
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range visible {
		if visible[i].Empty {
			// Gap candles carry the previous close; include it so the axis
			// does not jump when a gap scrolls in.
			lo, hi = math.Min(lo, visible[i].Close), math.Max(hi, visible[i].Close)
			continue
		}
		lo, hi = math.Min(lo, visible[i].Low), math.Max(hi, visible[i].High)
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	// Keep room for the outer tick cells.
	lo -= tick / 2
	hi += tick / 2
	pad := (hi - lo) * yPadding
	if pad <= 0 {
		pad = math.Max(math.Abs(hi)*0.001, tick)
	}
	return lo - pad, hi + pad
}
