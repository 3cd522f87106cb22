// Package interaction turns pointer, wheel and keyboard input into view
// changes and drawing edits. The Engine is a small state machine that works
// entirely in chart pixels and talks to its owner through the Host interface.
package interaction

import (
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/render"
)

// State is the current gesture.
type State string

const (
	StateIdle      State = "IDLE"
	StateDrawing   State = "DRAWING"
	StateDragging  State = "DRAGGING"
	StateResizing  State = "RESIZING"
	StatePanning   State = "PANNING"
	StateAxisDragX State = "AXIS_DRAG_X"
	StateAxisDragY State = "AXIS_DRAG_Y"
)

// PointerKind is the phase of a pointer event.
type PointerKind string

const (
	PointerDown  PointerKind = "down"
	PointerMove  PointerKind = "move"
	PointerUp    PointerKind = "up"
	PointerLeave PointerKind = "leave"
)

// Modifiers are the keyboard modifiers held during an event.
type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Alt   bool `json:"alt"`
	Meta  bool `json:"meta"`
}

// PointerEvent carries pixel coordinates relative to the chart surface.
type PointerEvent struct {
	Kind PointerKind `json:"kind"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
	Modifiers
}

// WheelEvent is a scroll at (X, Y). Positive DeltaY scrolls down.
type WheelEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaX float64 `json:"delta_x"`
	DeltaY float64 `json:"delta_y"`
	Modifiers
}

// KeyEvent is a key press, named like DOM KeyboardEvent.key.
type KeyEvent struct {
	Key string `json:"key"`
	Modifiers
}

// Host is the owner of the chart state the engine edits.
type Host interface {
	// Frame is the layout and scales of the current view.
	Frame() *render.Frame
	View() models.ViewState
	SetView(models.ViewState)
	Tool() models.Tool

	// Drawings returns the drawings in z-order, bottom first.
	Drawings() []models.Drawing
	PutDrawing(models.Drawing)
	DeleteDrawing(id string)
	NewDrawing(t models.DrawingType) models.Drawing

	SetDraft(*models.Drawing)
	SetCrosshair(render.Crosshair)
}

// Callbacks notify the embedding UI. Nil callbacks are skipped.
type Callbacks struct {
	OnViewChange      func(models.ViewState)
	OnCrosshairMove   func(price, timestampMs float64, visible bool)
	OnDrawingStart    func(models.Drawing)
	OnDrawingUpdate   func(models.Drawing)
	OnDrawingComplete func(models.Drawing)
	OnDrawingSelect   func(id string)
	OnDrawingDelete   func(id string)
}
