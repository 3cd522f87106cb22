package render

import (
	"testing"
)

func TestSceneOrderAndReset(t *testing.T) {
	s := NewScene()
	s.Reset(GroupCrosshair).Line(0, 0, 1, 1, Style{})
	s.Reset(GroupGrid).Rect(0, 0, 1, 1, Style{})
	s.Reset(GroupDrawings).Keyed("d1").Circle(1, 1, 5, Style{})

	nodes := s.Nodes()
	want := []OpKind{OpRect, OpCircle, OpLine}
	if len(nodes) != len(want) {
		t.Fatalf("Expected %d nodes, got %d", len(want), len(nodes))
	}
	for i, n := range nodes {
		if n.Kind != want[i] {
			t.Errorf("Expected node %d to be %s, got %s", i, want[i], n.Kind)
		}
	}
	if nodes[1].Key != "d1" {
		t.Errorf("Expected drawing node keyed d1, got %q", nodes[1].Key)
	}

	s.Reset(GroupGrid)
	if got := len(s.Nodes()); got != 2 {
		t.Errorf("Expected reset to clear only the grid, got %d nodes", got)
	}
}

func TestSceneFlush(t *testing.T) {
	s := NewScene()
	g := s.Reset(GroupAxes)
	g.Rect(0, 0, 10, 10, Style{Fill: ParseColor("#ffffff")})
	g.Text("1.2345", 5, 5, Style{FontSize: 10})

	rec := NewRecorder(100, 100, 1)
	for i := 0; i < 2; i++ {
		if err := s.Flush(rec); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
	}
	if rec.Background().A != 0 {
		t.Errorf("Expected a transparent overlay background, got %+v", rec.Background())
	}
	ops := rec.Ops()
	if len(ops) != 2 || ops[1].Text != "1.2345" {
		t.Errorf("Expected the retained nodes once per flush, got %+v", ops)
	}
}

func TestScenePointerCapture(t *testing.T) {
	s := NewScene()
	if !s.PointerCapture() {
		t.Error("Expected pointer capture enabled by default")
	}
	s.SetPointerCapture(false)
	if s.PointerCapture() {
		t.Error("Expected pointer capture disabled")
	}
}
