package chart

import (
	"time"

	"github.com/navid-fn/footprint/internal/interaction"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/render"
)

// host gives the interaction engine access to controller state. The engine
// only runs inside Controller.do, so every method is called with c.mu held.
type host struct {
	c *Controller
}

func (h host) Frame() *render.Frame { return h.c.frameLocked() }

func (h host) View() models.ViewState { return h.c.view }

// SetView applies a gesture result. An auto-fit price axis is pinned to the
// range it was last drawn with, so only ResetView returns to auto-fit.
func (h host) SetView(v models.ViewState) {
	if v.YDomain == nil && len(h.c.candles) > 0 {
		lo, hi := h.c.priceDomainLocked()
		v = v.WithYDomain(lo, hi)
	}
	h.c.autoFit = false
	h.c.view = clampView(v)
	h.c.persistViewLocked()
}

func (h host) Tool() models.Tool { return h.c.state.State().Tool }

func (h host) Drawings() []models.Drawing { return cloneDrawings(h.c.drawings) }

func (h host) PutDrawing(d models.Drawing) {
	c := h.c
	d = d.Clone()
	d.ChartID = c.opts.ChartID
	d.UpdatedAt = time.Now().UTC()
	replaced := false
	for i := range c.drawings {
		if c.drawings[i].ID == d.ID {
			c.drawings[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		c.drawings = append(c.drawings, d)
	}
	c.persistDrawingsLocked()
}

func (h host) DeleteDrawing(id string) { h.c.deleteDrawingLocked(id) }

func (h host) NewDrawing(t models.DrawingType) models.Drawing { return h.c.newDrawing(t) }

func (h host) SetDraft(d *models.Drawing) { h.c.draft = d }

func (h host) SetCrosshair(ch render.Crosshair) { h.c.crosshair = ch }

// engineCallbacks forward engine events to the UI callbacks after the lock
// is released.
func (c *Controller) engineCallbacks() interaction.Callbacks {
	return interaction.Callbacks{
		OnViewChange: func(v models.ViewState) {
			if cb := c.callbacks.OnViewChange; cb != nil {
				c.after(func() { cb(v) })
			}
		},
		OnCrosshairMove: func(price, ts float64, visible bool) {
			if cb := c.callbacks.OnCrosshairMove; cb != nil {
				c.after(func() { cb(price, ts, visible) })
			}
		},
		OnDrawingStart: func(d models.Drawing) {
			if cb := c.callbacks.OnDrawingStart; cb != nil {
				c.after(func() { cb(d) })
			}
		},
		OnDrawingUpdate: func(d models.Drawing) {
			if cb := c.callbacks.OnDrawingUpdate; cb != nil {
				c.after(func() { cb(d) })
			}
		},
		OnDrawingComplete: func(d models.Drawing) {
			if cb := c.callbacks.OnDrawingComplete; cb != nil {
				c.after(func() { cb(d) })
			}
		},
		OnDrawingSelect: func(id string) {
			if cb := c.callbacks.OnDrawingSelect; cb != nil {
				c.after(func() { cb(id) })
			}
		},
		OnDrawingDelete: func(id string) {
			if cb := c.callbacks.OnDrawingDelete; cb != nil {
				c.after(func() { cb(id) })
			}
		},
	}
}
