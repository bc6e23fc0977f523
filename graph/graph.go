package graph

import (
	"sort"

	"github.com/ingestkit/ingestkit/errors"
)

// Graph is a directed dependency graph over named nodes. Edges point
// from a node to the nodes it depends on.
type Graph struct {
	scope string
	nodes []string
	index map[string]bool
	deps  map[string][]string
}

// New creates an empty graph. The scope names the owning object (for
// example "job nightly") and is included in validation errors.
func New(scope string) *Graph {
	return &Graph{
		scope: scope,
		index: make(map[string]bool),
		deps:  make(map[string][]string),
	}
}

// AddNode declares a node. Re-adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.index[name] {
		return
	}
	g.index[name] = true
	g.nodes = append(g.nodes, name)
}

// AddDependency records that node depends on dependsOn. Both sides are
// checked during Validate, not here, so declaration order in the
// source configuration does not matter.
func (g *Graph) AddDependency(node, dependsOn string) {
	g.deps[node] = append(g.deps[node], dependsOn)
}

// Has reports whether the node is declared.
func (g *Graph) Has(name string) bool { return g.index[name] }

// Len returns the number of declared nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns all node names in sorted order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	sort.Strings(out)
	return out
}

// Dependencies returns the direct dependencies of a node in sorted
// order.
func (g *Graph) Dependencies(name string) []string {
	out := make([]string, len(g.deps[name]))
	copy(out, g.deps[name])
	sort.Strings(out)
	return out
}

// Dependents returns the nodes that directly depend on name, sorted.
func (g *Graph) Dependents(name string) []string {
	var out []string
	for node, deps := range g.deps {
		for _, dep := range deps {
			if dep == name {
				out = append(out, node)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks the graph's structural invariants: every dependency
// references a declared node, no node depends on itself, and the graph
// is acyclic. The first violation found (in deterministic order) is
// returned.
func (g *Graph) Validate() error {
	for _, node := range g.Nodes() {
		for _, dep := range g.Dependencies(node) {
			if dep == node {
				return errors.SelfDependency(g.scope, node)
			}
			if !g.index[dep] {
				return errors.UnknownDependency(g.scope, node, dep)
			}
		}
	}
	return g.checkAcyclic()
}

// checkAcyclic runs a DFS over sorted nodes and reports the first
// cycle found as its full path.
func (g *Graph) checkAcyclic() error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.nodes))
	var path []string

	var visit func(node string) error
	visit = func(node string) error {
		color[node] = gray
		path = append(path, node)

		for _, dep := range g.Dependencies(node) {
			switch color[dep] {
			case gray:
				return errors.CycleDetected(g.scope, cycleFrom(path, dep))
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		color[node] = black
		return nil
	}

	for _, node := range g.Nodes() {
		if color[node] == white {
			if err := visit(node); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleFrom extracts the cycle ending at start from the DFS path and
// closes it, e.g. [a b c] with start b yields [b c b].
func cycleFrom(path []string, start string) []string {
	for i, node := range path {
		if node == start {
			cycle := make([]string, 0, len(path)-i+1)
			cycle = append(cycle, path[i:]...)
			return append(cycle, start)
		}
	}
	return []string{start, start}
}

// Levels groups nodes into dependency levels using Kahn's algorithm.
// Level 0 holds nodes with no dependencies; each later level holds
// nodes whose dependencies are all in earlier levels. Nodes within a
// level are sorted. A cyclic graph yields a CYCLE_DETECTED error.
func (g *Graph) Levels() ([][]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string)

	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for node, deps := range g.deps {
		for _, dep := range deps {
			inDegree[node]++
			dependents[dep] = append(dependents[dep], node)
		}
	}

	var queue []string
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}
	sort.Strings(queue)

	var levels [][]string
	visited := 0

	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, node := range queue {
			for _, dep := range dependents[node] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Strings(next)
		queue = next
	}

	if visited != len(g.nodes) {
		// Re-run the DFS to report the cycle with its full path.
		if err := g.checkAcyclic(); err != nil {
			return nil, err
		}
		return nil, errors.Internal(nil)
	}
	return levels, nil
}

// TopoOrder returns a deterministic topological order (levels
// flattened).
func (g *Graph) TopoOrder() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(g.nodes))
	for _, level := range levels {
		out = append(out, level...)
	}
	return out, nil
}
