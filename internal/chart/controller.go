// Package chart owns one footprint chart: the candle series, the view over
// it, the drawings, and the two render layers. Every mutation goes through
// the Controller's mutex; callbacks and persistence run after it is released.
package chart

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/internal/aggregation"
	"github.com/navid-fn/footprint/internal/interaction"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/persistence"
	"github.com/navid-fn/footprint/internal/render"
	"github.com/navid-fn/footprint/internal/settings"
)

var (
	ErrDestroyed       = errors.New("chart destroyed")
	ErrDrawingNotFound = errors.New("drawing not found")
)

const (
	DefaultViewCount      = 40
	DefaultResizeDebounce = 100 * time.Millisecond
	// rightMargin is the empty space, in candles, kept right of the newest
	// candle by ResetView. The depth ladder lives there.
	rightMargin = 2
)

// Surface is a render target that can encode its current frame.
type Surface interface {
	render.Surface
	io.WriterTo
}

// RenderObserver receives the duration and outcome of every frame.
type RenderObserver interface {
	ObserveRender(d time.Duration, err error)
}

// Options configures a Controller.
type Options struct {
	ChartID          string
	Width            int
	Height           int
	PixelRatio       float64
	BaseTickSize     float64
	MaxTrades        int
	InitialViewCount float64
	ResizeDebounce   time.Duration

	// OnCandleClose receives candles as soon as a newer candle exists.
	OnCandleClose func([]models.FootprintCandle)
	Observer      RenderObserver
}

func (o Options) withDefaults() Options {
	if o.PixelRatio <= 0 {
		o.PixelRatio = 1
	}
	if o.BaseTickSize <= 0 {
		o.BaseTickSize = aggregation.DefaultBaseTickSize
	}
	if o.InitialViewCount <= 0 {
		o.InitialViewCount = DefaultViewCount
	}
	if o.ResizeDebounce <= 0 {
		o.ResizeDebounce = DefaultResizeDebounce
	}
	return o
}

// Controller is the single owner of chart state.
type Controller struct {
	opts    Options
	logger  *logrus.Logger
	session *persistence.Session
	state   *settings.Store
	agg     *aggregation.Aggregator

	rasterSurface  Surface
	overlaySurface Surface
	raster         *render.RasterRenderer
	vector         *render.VectorRenderer
	engine         *interaction.Engine

	mu          sync.Mutex
	candles     []models.FootprintCandle
	view        models.ViewState
	autoFit     bool
	drawings    []models.Drawing
	draft       *models.Drawing
	crosshair   render.Crosshair
	callbacks   interaction.Callbacks
	pending     []func()
	destroyed   bool
	resizeTimer *time.Timer
	renderErrs  int
	unsubscribe func()
}

// New builds a controller over the given surfaces. session may be nil for a
// chart without persistence.
func New(opts Options, session *persistence.Session, state *settings.Store, raster, overlay Surface, logger *logrus.Logger) (*Controller, error) {
	opts = opts.withDefaults()
	if opts.Width > 0 && opts.Height > 0 {
		if err := raster.Resize(opts.Width, opts.Height, opts.PixelRatio); err != nil {
			return nil, err
		}
		if err := overlay.Resize(opts.Width, opts.Height, opts.PixelRatio); err != nil {
			return nil, err
		}
	}
	c := &Controller{
		opts:           opts,
		logger:         logger,
		session:        session,
		state:          state,
		agg:            aggregation.NewAggregator(aggregation.ParamsFromSettings(state.Settings(), opts.BaseTickSize), opts.MaxTrades),
		rasterSurface:  raster,
		overlaySurface: overlay,
		raster:         render.NewRasterRenderer(),
		vector:         render.NewVectorRenderer(),
		autoFit:        true,
		drawings:       []models.Drawing{},
	}
	c.view = c.defaultViewLocked()
	c.engine = interaction.NewEngine(host{c}, c.engineCallbacks())
	c.unsubscribe = state.Subscribe(c.onSettings)
	return c, nil
}

// do runs fn under the lock and then the callbacks it queued.
func (c *Controller) do(fn func() error) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	err := fn()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, p := range pending {
		p()
	}
	return err
}

// after queues fn to run once the lock is released.
func (c *Controller) after(fn func()) {
	c.pending = append(c.pending, fn)
}

// SetCallbacks replaces the UI callbacks.
func (c *Controller) SetCallbacks(cb interaction.Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = cb
}

// UpdateData replaces the trade history and re-renders.
func (c *Controller) UpdateData(trades []models.Trade) error {
	return c.do(func() error {
		c.agg.Reset(trades)
		c.refreshCandlesLocked(nil)
		return c.renderLocked()
	})
}

// AppendTrades extends the trade history. The buffer is capped at
// Options.MaxTrades, dropping the oldest trades.
func (c *Controller) AppendTrades(trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return c.do(func() error {
		closed := c.agg.Append(trades)
		c.refreshCandlesLocked(closed)
		return c.renderLocked()
	})
}

// refreshCandlesLocked pulls the series from the aggregator, keeps the view
// anchored in time when the series origin moves, and scrolls with new
// candles when the newest one was in view.
func (c *Controller) refreshCandlesLocked(closed []models.FootprintCandle) {
	prev := c.candles
	following := c.followingLocked()
	c.candles = c.agg.Candles()

	switch {
	case c.autoFit:
		c.view = c.defaultViewLocked()
	case len(prev) > 0 && len(c.candles) > 0:
		interval := c.agg.Params().IntervalMs()
		shift := float64(c.candles[0].OpenTime-prev[0].OpenTime) / float64(interval)
		c.view.ViewOffset -= shift
		if following {
			c.view.ViewOffset += float64(len(c.candles)-len(prev)) + shift
		}
	}

	if len(closed) > 0 && c.opts.OnCandleClose != nil {
		cb := c.opts.OnCandleClose
		c.after(func() { cb(closed) })
	}
}

// followingLocked reports whether the newest candle is in view.
func (c *Controller) followingLocked() bool {
	n := float64(len(c.candles))
	return n > 0 && c.view.ViewOffset+c.view.ViewCount >= n && c.view.ViewOffset < n
}

// UpdateSettings applies a partial settings change. Aggregation is redone
// only when instrument, timeframe or level parameters change.
func (c *Controller) UpdateSettings(patch models.SettingsPatch) error {
	if c.isDestroyed() {
		return ErrDestroyed
	}
	return c.state.Dispatch(settings.UpdateSettings{Patch: patch})
}

// SetTool changes the active interaction tool.
func (c *Controller) SetTool(tool models.Tool) error {
	if c.isDestroyed() {
		return ErrDestroyed
	}
	return c.state.Dispatch(settings.SetTool{Tool: tool})
}

// SetStatus records the trade feed's connection status.
func (c *Controller) SetStatus(status models.ConnectionStatus) error {
	if c.isDestroyed() {
		return ErrDestroyed
	}
	return c.state.Dispatch(settings.SetStatus{Status: status})
}

// State returns settings, active tool and feed status.
func (c *Controller) State() settings.State {
	return c.state.State()
}

func (c *Controller) onSettings(prev, next settings.State) {
	if prev.Settings == next.Settings && prev.Tool == next.Tool {
		return
	}
	err := c.do(func() error {
		if models.AffectsAggregation(prev.Settings, next.Settings) {
			c.agg.SetParams(aggregation.ParamsFromSettings(next.Settings, c.opts.BaseTickSize))
			c.candles = c.agg.Candles()
			if prev.Settings.TimeframeMinutes != next.Settings.TimeframeMinutes || prev.Settings.Instrument != next.Settings.Instrument {
				c.autoFit = true
				c.view = c.defaultViewLocked()
			}
		}
		return c.renderLocked()
	})
	if err != nil && !errors.Is(err, ErrDestroyed) {
		c.logger.WithError(err).Warn("Render after settings change failed")
	}
}

// Settings returns the current settings.
func (c *Controller) Settings() models.Settings {
	return c.state.Settings()
}

// Candles returns the full candle series.
func (c *Controller) Candles() []models.FootprintCandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.FootprintCandle(nil), c.candles...)
}

// VisibleCandles returns the candles in [floor(offset), ceil(offset+count)).
func (c *Controller) VisibleCandles() []models.FootprintCandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	start, end := visibleRange(c.view, len(c.candles))
	return append([]models.FootprintCandle(nil), c.candles[start:end]...)
}

// Drawings returns the chart's drawings in z-order.
func (c *Controller) Drawings() []models.Drawing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneDrawings(c.drawings)
}

// Restore applies persisted state without writing it back.
func (c *Controller) Restore(view *models.ViewState, drawings []models.Drawing) error {
	return c.do(func() error {
		c.drawings = c.scopeLocked(drawings)
		if view != nil {
			c.autoFit = false
			c.view = clampView(*view)
		}
		return c.renderLocked()
	})
}

// LoadDrawings replaces the drawing set and persists it.
func (c *Controller) LoadDrawings(drawings []models.Drawing) error {
	return c.do(func() error {
		c.drawings = c.scopeLocked(drawings)
		c.persistDrawingsLocked()
		return c.renderLocked()
	})
}

// DeleteDrawing removes a drawing by id.
func (c *Controller) DeleteDrawing(id string) error {
	return c.do(func() error {
		if !c.deleteDrawingLocked(id) {
			return ErrDrawingNotFound
		}
		if cb := c.callbacks.OnDrawingDelete; cb != nil {
			c.after(func() { cb(id) })
		}
		return c.renderLocked()
	})
}

func (c *Controller) scopeLocked(ds []models.Drawing) []models.Drawing {
	out := make([]models.Drawing, 0, len(ds))
	for _, d := range ds {
		d = d.Clone()
		d.ChartID = c.opts.ChartID
		out = append(out, d)
	}
	return out
}

func (c *Controller) deleteDrawingLocked(id string) bool {
	for i := range c.drawings {
		if c.drawings[i].ID == id {
			c.drawings = append(c.drawings[:i], c.drawings[i+1:]...)
			c.persistDrawingsLocked()
			return true
		}
	}
	return false
}

func (c *Controller) persistDrawingsLocked() {
	if c.session == nil {
		return
	}
	ds := cloneDrawings(c.drawings)
	c.after(func() { c.session.PersistDrawings(ds) })
}

func (c *Controller) persistViewLocked() {
	if c.session == nil {
		return
	}
	v := c.view
	c.after(func() { c.session.PersistView(v) })
}

func (c *Controller) newDrawing(t models.DrawingType) models.Drawing {
	now := time.Now().UTC()
	return models.Drawing{
		ID:        uuid.NewString(),
		ChartID:   c.opts.ChartID,
		Type:      t,
		Visible:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HandlePointer feeds a pointer event to the interaction engine.
func (c *Controller) HandlePointer(ev interaction.PointerEvent) error {
	return c.do(func() error {
		if !c.vector.Scene().PointerCapture() {
			return nil
		}
		c.engine.HandlePointer(ev)
		return c.renderLocked()
	})
}

// HandleWheel feeds a wheel event to the interaction engine.
func (c *Controller) HandleWheel(ev interaction.WheelEvent) error {
	return c.do(func() error {
		if !c.vector.Scene().PointerCapture() {
			return nil
		}
		c.engine.HandleWheel(ev)
		return c.renderLocked()
	})
}

// HandleKey feeds a key press to the interaction engine.
func (c *Controller) HandleKey(ev interaction.KeyEvent) error {
	return c.do(func() error {
		c.engine.HandleKey(ev)
		return c.renderLocked()
	})
}

// SetPointerCapture enables or disables input handling on the overlay.
func (c *Controller) SetPointerCapture(enabled bool) {
	c.vector.Scene().SetPointerCapture(enabled)
}

// InteractionState is the current gesture.
func (c *Controller) InteractionState() interaction.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.State()
}

// Resize schedules a debounced resize of both layers followed by a redraw.
func (c *Controller) Resize(width, height int, pixelRatio float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrDestroyed
	}
	if c.resizeTimer != nil {
		c.resizeTimer.Stop()
	}
	c.resizeTimer = time.AfterFunc(c.opts.ResizeDebounce, func() {
		if err := c.applyResize(width, height, pixelRatio); err != nil && !errors.Is(err, ErrDestroyed) {
			c.logger.WithError(err).Warn("Resize failed")
		}
	})
	return nil
}

func (c *Controller) applyResize(width, height int, pixelRatio float64) error {
	return c.do(func() error {
		if err := c.rasterSurface.Resize(width, height, pixelRatio); err != nil {
			return err
		}
		if err := c.overlaySurface.Resize(width, height, pixelRatio); err != nil {
			return err
		}
		return c.renderLocked()
	})
}

// Size is the current CSS size and pixel ratio.
func (c *Controller) Size() (int, int, float64) {
	return c.rasterSurface.Size()
}

// WriteRaster encodes the raster layer.
func (c *Controller) WriteRaster(w io.Writer) error {
	return c.write(c.rasterSurface, w)
}

// WriteOverlay encodes the vector overlay.
func (c *Controller) WriteOverlay(w io.Writer) error {
	return c.write(c.overlaySurface, w)
}

func (c *Controller) write(s Surface, w io.Writer) error {
	return c.do(func() error {
		_, err := s.WriteTo(w)
		return err
	})
}

// RenderErrors counts frames that failed.
func (c *Controller) RenderErrors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderErrs
}

func (c *Controller) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Destroy detaches the controller from the settings store and releases both
// surfaces. Later calls return ErrDestroyed.
func (c *Controller) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	c.destroyed = true
	if c.resizeTimer != nil {
		c.resizeTimer.Stop()
	}
	c.pending = nil
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	unsubscribe()
	c.rasterSurface.Release()
	c.overlaySurface.Release()
	c.logger.WithField("chart_id", c.opts.ChartID).Info("Chart destroyed")
	return nil
}

func cloneDrawings(ds []models.Drawing) []models.Drawing {
	out := make([]models.Drawing, len(ds))
	for i, d := range ds {
		out[i] = d.Clone()
	}
	return out
}
