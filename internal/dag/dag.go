// Package dag provides a directed graph of file dependencies.
// An edge points from an included file to the file that includes it, so the
// dependents of a header are reachable by following edges forward.
// It supports cycle detection, topological ordering and change propagation.
package dag

import (
	"cmp"
	"fmt"
	"slices"
)

// Graph is a directed graph over comparable, ordered node IDs.
// It is not safe for concurrent use.
type Graph[K cmp.Ordered] struct {
	nodes   map[K]bool
	edges   map[K][]K // parent -> children (dependents)
	parents map[K][]K // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		nodes:   make(map[K]bool),
		edges:   make(map[K][]K),
		parents: make(map[K][]K),
	}
}

// Clone returns an independent copy of the graph.
func (g *Graph[K]) Clone() *Graph[K] {
	out := NewGraph[K]()
	for id := range g.nodes {
		out.nodes[id] = true
		out.edges[id] = slices.Clone(g.edges[id])
		out.parents[id] = slices.Clone(g.parents[id])
	}
	return out
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *Graph[K]) AddNode(id K) {
	if g.nodes[id] {
		return
	}
	g.nodes[id] = true
	g.edges[id] = nil
	g.parents[id] = nil
}

// HasNode reports whether id is in the graph.
func (g *Graph[K]) HasNode(id K) bool {
	return g.nodes[id]
}

// RemoveNode deletes id and every edge touching it.
func (g *Graph[K]) RemoveNode(id K) {
	if !g.nodes[id] {
		return
	}
	for _, child := range g.edges[id] {
		g.parents[child] = slices.DeleteFunc(g.parents[child], func(p K) bool { return p == id })
	}
	for _, parent := range g.parents[id] {
		g.edges[parent] = slices.DeleteFunc(g.edges[parent], func(c K) bool { return c == id })
	}
	delete(g.nodes, id)
	delete(g.edges, id)
	delete(g.parents, id)
}

// SetParents replaces the dependencies of child, adding any missing nodes.
// Self-dependencies are rejected.
func (g *Graph[K]) SetParents(child K, parents []K) error {
	g.AddNode(child)
	for _, old := range g.parents[child] {
		g.edges[old] = slices.DeleteFunc(g.edges[old], func(c K) bool { return c == child })
	}
	g.parents[child] = nil
	for _, p := range parents {
		g.AddNode(p)
		if err := g.AddEdge(p, child); err != nil {
			return err
		}
	}
	return nil
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph[K]) AddEdge(parent, child K) error {
	if !g.nodes[parent] {
		return fmt.Errorf("parent node %v does not exist", parent)
	}
	if !g.nodes[child] {
		return fmt.Errorf("child node %v does not exist", child)
	}
	if parent == child {
		return fmt.Errorf("self-loop detected: %v", parent)
	}

	if !slices.Contains(g.edges[parent], child) {
		g.edges[parent] = append(g.edges[parent], child)
	}
	if !slices.Contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

// Parents returns the dependencies of a node.
func (g *Graph[K]) Parents(id K) []K {
	return g.parents[id]
}

// Children returns the dependents of a node.
func (g *Graph[K]) Children(id K) []K {
	return g.edges[id]
}

// Nodes returns every node in ascending order.
func (g *Graph[K]) Nodes() []K {
	out := make([]K, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph[K]) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph[K]) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle
// path. The path starts and ends on the same node.
func (g *Graph[K]) HasCycle() (bool, []K) {
	visited := make(map[K]bool)
	onStack := make(map[K]bool)
	from := make(map[K]K)

	var cycle []K
	var dfs func(id K) bool
	dfs = func(id K) bool {
		visited[id] = true
		onStack[id] = true
		for _, child := range g.edges[id] {
			if !visited[child] {
				from[child] = id
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				cycle = []K{child}
				for cur := id; cur != child; cur = from[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, child)
				slices.Reverse(cycle)
				return true
			}
		}
		onStack[id] = false
		return false
	}

	for _, id := range g.Nodes() {
		if !visited[id] && dfs(id) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns nodes with dependencies before dependents.
// Returns an error if the graph contains a cycle.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	visited := make(map[K]bool)
	var result []K
	var visit func(id K)
	visit = func(id K) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, p := range g.parents[id] {
			visit(p)
		}
		result = append(result, id)
	}
	for _, id := range g.Nodes() {
		visit(id)
	}
	return result, nil
}

// Affected returns the changed nodes and everything downstream of them,
// in ascending order. Unknown IDs are returned as they are.
func (g *Graph[K]) Affected(changed []K) []K {
	affected := make(map[K]bool)
	var mark func(id K)
	mark = func(id K) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, child := range g.edges[id] {
			mark(child)
		}
	}
	for _, id := range changed {
		mark(id)
	}
	return sortedKeys(affected)
}

// Upstream returns every transitive dependency of id.
func (g *Graph[K]) Upstream(id K) []K {
	upstream := make(map[K]bool)
	var mark func(n K)
	mark = func(n K) {
		for _, p := range g.parents[n] {
			if !upstream[p] {
				upstream[p] = true
				mark(p)
			}
		}
	}
	mark(id)
	return sortedKeys(upstream)
}

// Roots returns nodes with no dependencies.
func (g *Graph[K]) Roots() []K {
	var roots []K
	for _, id := range g.Nodes() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

func sortedKeys[K cmp.Ordered](m map[K]bool) []K {
	out := make([]K, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
