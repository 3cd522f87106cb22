package render

import (
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// OpKind names a recorded drawing primitive.
type OpKind string

const (
	OpRect   OpKind = "rect"
	OpLine   OpKind = "line"
	OpPath   OpKind = "path"
	OpCircle OpKind = "circle"
	OpText   OpKind = "text"
)

// Op is one recorded primitive in CSS pixels.
type Op struct {
	Kind   OpKind
	X, Y   float64
	W, H   float64
	X2, Y2 float64
	R      float64
	Points []Point
	Closed bool
	Text   string
	Style  Style
}

// Recorder is a headless Surface that keeps the primitives of the current
// frame. ChartSurface builds on it; tests inspect it directly.
type Recorder struct {
	mu       sync.Mutex
	width    int
	height   int
	ratio    float64
	bg       drawing.Color
	ops      []Op
	clears   int
	err      error
	released bool
}

// NewRecorder creates a recorder of the given CSS size.
func NewRecorder(width, height int, pixelRatio float64) *Recorder {
	r := &Recorder{}
	_ = r.Resize(width, height, pixelRatio)
	return r
}

func (r *Recorder) Resize(width, height int, pixelRatio float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	if pixelRatio <= 0 || math.IsNaN(pixelRatio) {
		pixelRatio = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.width, r.height, r.ratio = width, height, pixelRatio
	r.ops = nil
	return nil
}

func (r *Recorder) Size() (int, int, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height, r.ratio
}

func (r *Recorder) Clear(bg drawing.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.bg = bg
	r.ops = r.ops[:0]
	r.clears++
	r.err = nil
	return nil
}

func (r *Recorder) record(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		if r.err == nil {
			r.err = ErrReleased
		}
		return
	}
	r.ops = append(r.ops, op)
}

func (r *Recorder) Rect(x, y, w, h float64, st Style) {
	r.record(Op{Kind: OpRect, X: x, Y: y, W: w, H: h, Style: st})
}

func (r *Recorder) Line(x1, y1, x2, y2 float64, st Style) {
	r.record(Op{Kind: OpLine, X: x1, Y: y1, X2: x2, Y2: y2, Style: st})
}

func (r *Recorder) Path(points []Point, closed bool, st Style) {
	r.record(Op{Kind: OpPath, Points: append([]Point(nil), points...), Closed: closed, Style: st})
}

func (r *Recorder) Circle(cx, cy, radius float64, st Style) {
	r.record(Op{Kind: OpCircle, X: cx, Y: cy, R: radius, Style: st})
}

func (r *Recorder) Text(body string, x, y float64, st Style) {
	r.record(Op{Kind: OpText, X: x, Y: y, Text: body, Style: st})
}

// MeasureText estimates text extents from the font size.
func (r *Recorder) MeasureText(body string, fontSize float64) (float64, float64) {
	return float64(utf8.RuneCountInString(body)) * fontSize * 0.6, fontSize
}

func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
	r.ops = nil
}

// Ops returns a copy of the primitives recorded since the last Clear.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// OpsOf returns the recorded primitives of one kind.
func (r *Recorder) OpsOf(kind OpKind) []Op {
	var out []Op
	for _, op := range r.Ops() {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// Clears counts Clear calls.
func (r *Recorder) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

// Background is the color of the last Clear.
func (r *Recorder) Background() drawing.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bg
}
