package chart

import (
	"fmt"
	"time"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/render"
)

// frameLocked builds the scales and the visible slice for the current view.
func (c *Controller) frameLocked() *render.Frame {
	st := c.state.Settings()
	w, h, _ := c.rasterSurface.Size()
	layout := render.NewLayout(w, h)
	params := c.agg.Params()

	start, end := visibleRange(c.view, len(c.candles))
	visible := c.candles[start:end]
	tick := params.EffectiveTickSize()
	lo, hi := c.priceDomainLocked()

	f := &render.Frame{
		Layout:     layout,
		X:          layout.IndexScale(c.view.ViewOffset, c.view.ViewCount),
		Y:          layout.PriceScale(lo, hi),
		Candles:    visible,
		StartIndex: start,
		Total:      len(c.candles),
		IntervalMs: params.IntervalMs(),
		TickSize:   tick,
		Settings:   st,
		Theme:      c.state.Theme(),
	}
	if n := len(c.candles); n > 0 {
		f.OriginMs = c.candles[0].OpenTime
		f.Last = &c.candles[n-1]
	}
	return f
}

// Render redraws both layers.
func (c *Controller) Render() error {
	return c.do(c.renderLocked)
}

// renderLocked runs one frame: clear both layers, grid, heatmap, dots or
// candlesticks plus footprint cells, POC and value area lines, depth ladder,
// axes, drawings, crosshair. A failing frame is logged and counted; the next
// one starts from a clean surface.
func (c *Controller) renderLocked() (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
		if err != nil {
			c.renderErrs++
			c.logger.WithError(err).WithField("chart_id", c.opts.ChartID).Error("Render failed")
		}
		if c.opts.Observer != nil {
			c.opts.Observer.ObserveRender(time.Since(start), err)
		}
	}()

	f := c.frameLocked()
	if err := c.raster.Clear(c.rasterSurface, f); err != nil {
		return err
	}

	c.vector.Grid(f)
	if f.Settings.ShowHeatmap {
		c.raster.Heatmap(c.rasterSurface, f)
	}
	if f.Settings.ChartType == models.ChartDots {
		c.raster.Dots(c.rasterSurface, f)
	} else {
		c.raster.Candlesticks(c.rasterSurface, f)
		c.raster.Footprint(c.rasterSurface, f)
	}
	c.vector.Levels(f)
	c.vector.Ladder(f)
	c.vector.Axes(f)
	c.vector.Drawings(f, c.drawings, c.draft)
	c.vector.Crosshair(f, c.overlaySurface, c.crosshair)

	if err := c.vector.Flush(c.overlaySurface); err != nil {
		return err
	}
	return c.rasterSurface.Err()
}
