package dag

import (
	"testing"
)

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := NewGraph[string]()

	g.AddNode("a.hrl")
	g.AddNode("b.hrl")
	g.AddNode("c.erl")
	g.AddNode("a.hrl")

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	// b.hrl includes a.hrl
	if err := g.AddEdge("a.hrl", "b.hrl"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}
	// c.erl includes b.hrl
	if err := g.AddEdge("b.hrl", "c.erl"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}
	if err := g.AddEdge("b.hrl", "c.erl"); err != nil {
		t.Errorf("duplicate edge should be ignored: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph[string]()
	g.AddNode("a")

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_AddEdge_SelfLoop(t *testing.T) {
	g := NewGraph[string]()
	g.AddNode("a")

	if err := g.AddEdge("a", "a"); err == nil {
		t.Error("expected error for self-loop")
	}
}

func TestGraph_ParentsAndChildren(t *testing.T) {
	g := NewGraph[uint32]()
	for _, id := range []uint32{1, 2, 3} {
		g.AddNode(id)
	}

	// 2 depends on 1, 3 depends on both 1 and 2
	_ = g.AddEdge(1, 2)
	_ = g.AddEdge(1, 3)
	_ = g.AddEdge(2, 3)

	if got := len(g.Parents(3)); got != 2 {
		t.Errorf("expected 3 to have 2 parents, got %d", got)
	}
	if got := len(g.Children(1)); got != 2 {
		t.Errorf("expected 1 to have 2 children, got %d", got)
	}
}

func TestGraph_SetParents(t *testing.T) {
	g := NewGraph[string]()

	if err := g.SetParents("m.erl", []string{"a.hrl", "b.hrl"}); err != nil {
		t.Fatalf("SetParents: %v", err)
	}
	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	if err := g.SetParents("m.erl", []string{"b.hrl"}); err != nil {
		t.Fatalf("SetParents: %v", err)
	}
	if got := g.Parents("m.erl"); len(got) != 1 || got[0] != "b.hrl" {
		t.Errorf("expected parents [b.hrl], got %v", got)
	}
	if got := g.Children("a.hrl"); len(got) != 0 {
		t.Errorf("expected a.hrl to have no dependents, got %v", got)
	}

	if err := g.SetParents("m.erl", []string{"m.erl"}); err == nil {
		t.Error("expected error for self-include")
	}
}

func TestGraph_RemoveNode(t *testing.T) {
	g := NewGraph[string]()
	_ = g.SetParents("b", []string{"a"})
	_ = g.SetParents("c", []string{"b"})

	g.RemoveNode("b")

	if g.HasNode("b") {
		t.Error("expected b to be removed")
	}
	if g.EdgeCount() != 0 {
		t.Errorf("expected no edges, got %d", g.EdgeCount())
	}
	if len(g.Children("a")) != 0 || len(g.Parents("c")) != 0 {
		t.Error("expected dangling edges to be removed")
	}
}

func TestGraph_HasCycle_NoCycle(t *testing.T) {
	g := NewGraph[string]()
	_ = g.SetParents("b", []string{"a"})
	_ = g.SetParents("c", []string{"b"})

	if hasCycle, path := g.HasCycle(); hasCycle {
		t.Errorf("expected no cycle, but found: %v", path)
	}
}

func TestGraph_HasCycle_WithCycle(t *testing.T) {
	g := NewGraph[string]()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "a") // Creates cycle

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected cycle to be detected")
	}
	want := []string{"a", "b", "c", "a"}
	if len(path) != len(want) {
		t.Fatalf("expected cycle path %v, got %v", want, path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("expected cycle path %v, got %v", want, path)
			break
		}
	}
}

func TestGraph_TopologicalSort_Diamond(t *testing.T) {
	// Diamond: b and c include a, d includes b and c
	g := NewGraph[string]()
	_ = g.SetParents("b", []string{"a"})
	_ = g.SetParents("c", []string{"a"})
	_ = g.SetParents("d", []string{"b", "c"})

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}

	positions := make(map[string]int)
	for i, id := range sorted {
		positions[id] = i
	}

	if positions["a"] != 0 {
		t.Error("a should be first")
	}
	if positions["d"] != 3 {
		t.Error("d should be last")
	}
	if positions["b"] <= positions["a"] || positions["b"] >= positions["d"] {
		t.Error("b should be between a and d")
	}
	if positions["c"] <= positions["a"] || positions["c"] >= positions["d"] {
		t.Error("c should be between a and d")
	}
}

func TestGraph_TopologicalSort_WithCycle(t *testing.T) {
	g := NewGraph[string]()
	g.AddNode("a")
	g.AddNode("b")
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "a")

	if _, err := g.TopologicalSort(); err == nil {
		t.Error("expected error for cyclic graph")
	}
}

func TestGraph_Affected(t *testing.T) {
	g := NewGraph[string]()
	_ = g.SetParents("types.hrl", []string{"base.hrl"})
	_ = g.SetParents("a.erl", []string{"types.hrl"})
	_ = g.SetParents("b.erl", []string{"base.hrl"})
	g.AddNode("c.erl")

	tests := []struct {
		name    string
		changed []string
		want    []string
	}{
		{"leaf", []string{"a.erl"}, []string{"a.erl"}},
		{"header", []string{"types.hrl"}, []string{"a.erl", "types.hrl"}},
		{"root header", []string{"base.hrl"}, []string{"a.erl", "b.erl", "base.hrl", "types.hrl"}},
		{"unknown", []string{"new.erl"}, []string{"new.erl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Affected(tt.changed)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestGraph_UpstreamAndRoots(t *testing.T) {
	g := NewGraph[string]()
	_ = g.SetParents("types.hrl", []string{"base.hrl"})
	_ = g.SetParents("a.erl", []string{"types.hrl"})

	up := g.Upstream("a.erl")
	if len(up) != 2 || up[0] != "base.hrl" || up[1] != "types.hrl" {
		t.Errorf("expected [base.hrl types.hrl], got %v", up)
	}

	roots := g.Roots()
	if len(roots) != 1 || roots[0] != "base.hrl" {
		t.Errorf("expected [base.hrl], got %v", roots)
	}
}

func TestGraph_Clone(t *testing.T) {
	g := NewGraph[string]()
	_ = g.SetParents("b", []string{"a"})

	c := g.Clone()
	c.RemoveNode("a")

	if !g.HasNode("a") || g.EdgeCount() != 1 {
		t.Error("clone should not share state with the original")
	}
}
