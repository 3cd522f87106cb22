package interaction

import (
	"math"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/render"
)

const (
	// AnchorTolerance is the pick radius of a selection handle in pixels.
	AnchorTolerance = 6.0
	// BodyTolerance is the pick distance of a shape body in pixels.
	BodyTolerance = 5.0
	// penMinStep drops pen samples closer than this to the previous one.
	penMinStep = 2.0
)

// Engine is the interaction state machine. It is not safe for concurrent
// use; the owner serializes events.
type Engine struct {
	host Host
	cb   Callbacks

	state State
	draft *models.Drawing

	// gesture start
	startX, startY float64
	startView      models.ViewState
	startFrame     *render.Frame
	target         models.Drawing
	anchor         int
}

func NewEngine(host Host, cb Callbacks) *Engine {
	return &Engine{host: host, cb: cb, state: StateIdle}
}

// State is the current gesture.
func (e *Engine) State() State { return e.state }

// Draft is the shape being drawn, if any.
func (e *Engine) Draft() *models.Drawing {
	if e.draft == nil {
		return nil
	}
	d := e.draft.Clone()
	return &d
}

// HandlePointer advances the state machine with one pointer event.
func (e *Engine) HandlePointer(ev PointerEvent) {
	switch ev.Kind {
	case PointerDown:
		e.down(ev)
	case PointerMove:
		e.move(ev)
	case PointerUp:
		e.up(ev)
	case PointerLeave:
		e.leave()
	}
}

func (e *Engine) down(ev PointerEvent) {
	f := e.host.Frame()
	e.startX, e.startY = ev.X, ev.Y
	e.startView = e.host.View()
	e.startFrame = f

	if e.state == StateDrawing && e.draft != nil {
		e.addDraftPoint(f, ev)
		return
	}

	switch {
	case f.Layout.InPriceAxis(ev.X, ev.Y):
		e.state = StateAxisDragY
		return
	case f.Layout.InTimeAxis(ev.X, ev.Y):
		e.state = StateAxisDragX
		return
	case !f.Layout.InChart(ev.X, ev.Y):
		return
	}

	if dt, ok := e.host.Tool().DrawingType(); ok {
		e.startDraft(f, dt, ev)
		return
	}

	id, anchor, hit := e.hitTest(f, render.Point{X: ev.X, Y: ev.Y})
	if !hit {
		e.selectDrawing("")
		e.state = StatePanning
		return
	}
	e.selectDrawing(id)
	for _, d := range e.host.Drawings() {
		if d.ID == id {
			e.target = d.Clone()
		}
	}
	e.anchor = anchor
	if anchor >= 0 {
		e.state = StateResizing
	} else {
		e.state = StateDragging
	}
}

func (e *Engine) move(ev PointerEvent) {
	f := e.host.Frame()
	e.crosshair(f, ev.X, ev.Y)

	switch e.state {
	case StateDrawing:
		e.updateDraft(f, ev)
	case StateDragging:
		e.drag(ev)
	case StateResizing:
		e.resize(ev)
	case StatePanning:
		e.pan(ev)
	case StateAxisDragX:
		e.axisDragX(ev)
	case StateAxisDragY:
		e.axisDragY(ev)
	}
}

func (e *Engine) up(PointerEvent) {
	switch e.state {
	case StateDrawing:
		if e.draft != nil && e.draft.Type == models.DrawingPen {
			e.finishPen()
		}
	case StateDragging, StateResizing:
		e.state = StateIdle
	case StatePanning, StateAxisDragX, StateAxisDragY:
		e.state = StateIdle
	}
}

// leave ends pan and axis gestures and hides the crosshair. A multi-click
// shape stays in progress.
func (e *Engine) leave() {
	e.host.SetCrosshair(render.Crosshair{})
	if e.cb.OnCrosshairMove != nil {
		e.cb.OnCrosshairMove(0, 0, false)
	}
	switch e.state {
	case StatePanning, StateAxisDragX, StateAxisDragY, StateDragging, StateResizing:
		e.state = StateIdle
	case StateDrawing:
		if e.draft != nil && e.draft.Type == models.DrawingPen {
			e.finishPen()
		}
	}
}

// HandleKey applies Delete/Backspace and Escape.
func (e *Engine) HandleKey(ev KeyEvent) {
	switch ev.Key {
	case "Delete", "Backspace":
		for _, d := range e.host.Drawings() {
			if d.Selected && !d.Locked {
				e.host.DeleteDrawing(d.ID)
				if e.cb.OnDrawingDelete != nil {
					e.cb.OnDrawingDelete(d.ID)
				}
			}
		}
	case "Escape":
		e.cancelDraft()
		e.selectDrawing("")
		e.state = StateIdle
	}
}

func (e *Engine) crosshair(f *render.Frame, x, y float64) {
	visible := f.Layout.InChart(x, y)
	e.host.SetCrosshair(render.Crosshair{X: x, Y: y, Visible: visible})
	if e.cb.OnCrosshairMove == nil {
		return
	}
	if !visible {
		e.cb.OnCrosshairMove(0, 0, false)
		return
	}
	p := f.FromPixel(x, y)
	e.cb.OnCrosshairMove(p.Price, p.TimestampMs, true)
}

// selectDrawing marks id as the only selected drawing. Empty id clears the
// selection.
func (e *Engine) selectDrawing(id string) {
	changed := false
	for _, d := range e.host.Drawings() {
		want := d.ID == id
		if d.Selected != want {
			d.Selected = want
			e.host.PutDrawing(d)
			changed = true
		}
	}
	if changed && e.cb.OnDrawingSelect != nil {
		e.cb.OnDrawingSelect(id)
	}
}

func (e *Engine) startDraft(f *render.Frame, dt models.DrawingType, ev PointerEvent) {
	d := e.host.NewDrawing(dt)
	p := f.FromPixel(ev.X, ev.Y)
	d.Points = []models.DrawingPoint{p}
	if dt.AnchorCount() == 2 {
		// The second anchor follows the pointer until the next click.
		d.Points = append(d.Points, p)
	}
	e.draft = &d
	e.state = StateDrawing
	if e.cb.OnDrawingStart != nil {
		e.cb.OnDrawingStart(d.Clone())
	}
	if dt.AnchorCount() == 1 {
		e.complete()
		return
	}
	e.host.SetDraft(e.Draft())
}

func (e *Engine) addDraftPoint(f *render.Frame, ev PointerEvent) {
	p := f.FromPixel(ev.X, ev.Y)
	switch e.draft.Type {
	case models.DrawingPen:
		e.draft.Points = append(e.draft.Points, p)
	default:
		e.draft.Points[len(e.draft.Points)-1] = p
		e.complete()
	}
}

func (e *Engine) updateDraft(f *render.Frame, ev PointerEvent) {
	if e.draft == nil {
		return
	}
	p := f.FromPixel(ev.X, ev.Y)
	if e.draft.Type == models.DrawingPen {
		last := f.ToPixel(e.draft.Points[len(e.draft.Points)-1])
		if math.Hypot(ev.X-last.X, ev.Y-last.Y) < penMinStep {
			return
		}
		e.draft.Points = append(e.draft.Points, p)
	} else {
		e.draft.Points[len(e.draft.Points)-1] = p
	}
	e.host.SetDraft(e.Draft())
	if e.cb.OnDrawingUpdate != nil {
		e.cb.OnDrawingUpdate(e.draft.Clone())
	}
}

func (e *Engine) finishPen() {
	if len(e.draft.Points) >= 2 {
		e.complete()
		return
	}
	e.cancelDraft()
}

func (e *Engine) complete() {
	d := e.draft.Clone()
	e.draft = nil
	e.state = StateIdle
	e.host.SetDraft(nil)
	e.host.PutDrawing(d)
	if e.cb.OnDrawingComplete != nil {
		e.cb.OnDrawingComplete(d)
	}
}

func (e *Engine) cancelDraft() {
	if e.draft == nil {
		return
	}
	e.draft = nil
	e.host.SetDraft(nil)
	if e.state == StateDrawing {
		e.state = StateIdle
	}
}

// drag moves every anchor of the target by the pointer delta in pixels.
func (e *Engine) drag(ev PointerEvent) {
	f := e.startFrame
	d := e.target.Clone()
	dx, dy := ev.X-e.startX, ev.Y-e.startY
	for i, p := range d.Points {
		px := f.ToPixel(p)
		d.Points[i] = f.FromPixel(px.X+dx, px.Y+dy)
	}
	e.putEdited(d)
}

func (e *Engine) resize(ev PointerEvent) {
	d := e.target.Clone()
	if e.anchor < 0 || e.anchor >= len(d.Points) {
		return
	}
	d.Points[e.anchor] = e.startFrame.FromPixel(ev.X, ev.Y)
	e.putEdited(d)
}

func (e *Engine) putEdited(d models.Drawing) {
	d.Selected = true
	e.host.PutDrawing(d)
	if e.cb.OnDrawingUpdate != nil {
		e.cb.OnDrawingUpdate(d.Clone())
	}
}

func (e *Engine) setView(v models.ViewState) {
	e.host.SetView(v)
	v = e.host.View()
	if e.cb.OnViewChange != nil {
		e.cb.OnViewChange(v)
	}
}
