package render

import (
	"sync"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Overlay group names in paint order.
const (
	GroupGrid      = "grid"
	GroupLevels    = "levels"
	GroupLadder    = "ladder"
	GroupAxes      = "axes"
	GroupDrawings  = "drawings"
	GroupCrosshair = "crosshair"
)

// Node is a retained primitive. Key identifies the data it was built from,
// e.g. the drawing id.
type Node struct {
	Op
	Key string
}

// Group is a named, ordered list of nodes.
type Group struct {
	name  string
	nodes []Node
	key   string
}

func (g *Group) Name() string { return g.name }

// Keyed tags the nodes added after it with key.
func (g *Group) Keyed(key string) *Group {
	g.key = key
	return g
}

func (g *Group) add(op Op) {
	g.nodes = append(g.nodes, Node{Op: op, Key: g.key})
}

func (g *Group) Rect(x, y, w, h float64, st Style) {
	g.add(Op{Kind: OpRect, X: x, Y: y, W: w, H: h, Style: st})
}

func (g *Group) Line(x1, y1, x2, y2 float64, st Style) {
	g.add(Op{Kind: OpLine, X: x1, Y: y1, X2: x2, Y2: y2, Style: st})
}

func (g *Group) Path(points []Point, closed bool, st Style) {
	g.add(Op{Kind: OpPath, Points: append([]Point(nil), points...), Closed: closed, Style: st})
}

func (g *Group) Circle(cx, cy, r float64, st Style) {
	g.add(Op{Kind: OpCircle, X: cx, Y: cy, R: r, Style: st})
}

func (g *Group) Text(body string, x, y float64, st Style) {
	g.add(Op{Kind: OpText, X: x, Y: y, Text: body, Style: st})
}

// Len is the number of nodes in the group.
func (g *Group) Len() int { return len(g.nodes) }

func (g *Group) reset() {
	g.nodes = g.nodes[:0]
	g.key = ""
}

// Scene is the retained node tree of the vector overlay. Groups keep their
// nodes until reset, so an unchanged group costs nothing to rebuild.
type Scene struct {
	mu      sync.Mutex
	groups  []*Group
	capture bool
}

// NewScene creates a scene with the standard overlay groups. Pointer capture
// starts enabled.
func NewScene() *Scene {
	s := &Scene{capture: true}
	for _, name := range []string{GroupGrid, GroupLevels, GroupLadder, GroupAxes, GroupDrawings, GroupCrosshair} {
		s.groups = append(s.groups, &Group{name: name})
	}
	return s
}

// Group returns the named group, appending it when missing.
func (s *Scene) Group(name string) *Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group(name)
}

func (s *Scene) group(name string) *Group {
	for _, g := range s.groups {
		if g.name == name {
			return g
		}
	}
	g := &Group{name: name}
	s.groups = append(s.groups, g)
	return g
}

// Reset empties the named group and returns it for rebuilding.
func (s *Scene) Reset(name string) *Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.group(name)
	g.reset()
	return g
}

// Clear empties every group.
func (s *Scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		g.reset()
	}
}

// Nodes returns every node in paint order.
func (s *Scene) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Node
	for _, g := range s.groups {
		out = append(out, g.nodes...)
	}
	return out
}

// Flush clears the surface to transparent and paints every node.
func (s *Scene) Flush(target Surface) error {
	if err := target.Clear(drawing.Color{}); err != nil {
		return err
	}
	for _, n := range s.Nodes() {
		switch n.Kind {
		case OpRect:
			target.Rect(n.X, n.Y, n.W, n.H, n.Style)
		case OpLine:
			target.Line(n.X, n.Y, n.X2, n.Y2, n.Style)
		case OpPath:
			target.Path(n.Points, n.Closed, n.Style)
		case OpCircle:
			target.Circle(n.X, n.Y, n.R, n.Style)
		case OpText:
			target.Text(n.Text, n.X, n.Y, n.Style)
		}
	}
	return target.Err()
}

// SetPointerCapture enables or disables the overlay as the interaction surface.
func (s *Scene) SetPointerCapture(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture = enabled
}

func (s *Scene) PointerCapture() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture
}
