// SPDX-License-Identifier: MPL-2.0

// Package dag provides topological ordering and cycle detection over module
// dependency graphs. The sync engine uses it to process a requested set of
// modules so that dependencies come before the modules that need them.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle lists the nodes left unordered, enough to identify the problem.
		Cycle []string
	}

	// Graph is a directed graph for topological sorting.
	// An edge from A to B means A must be processed before B.
	Graph[N ~string] struct {
		adjacency map[N][]N
		// nodes keeps insertion order for deterministic output.
		nodes   []N
		nodeSet map[N]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New[N ~string]() *Graph[N] {
	return &Graph[N]{
		adjacency: make(map[N][]N),
		nodeSet:   make(map[N]bool),
	}
}

// FromDependencies builds the graph reachable from roots, with an edge from
// each dependency to its dependent. Roots are added first, in order, so that
// unrelated roots keep their relative order when sorted.
func FromDependencies[N ~string](roots []N, deps func(N) []N) *Graph[N] {
	g := New[N]()
	for _, r := range roots {
		g.AddNode(r)
	}

	expanded := make(map[N]bool)
	queue := append([]N(nil), roots...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if expanded[n] {
			continue
		}
		expanded[n] = true
		for _, d := range deps(n) {
			g.AddEdge(d, n)
			if !expanded[d] {
				queue = append(queue, d)
			}
		}
	}
	return g
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph[N]) AddNode(name N) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to, meaning "from" comes before "to".
// Both nodes are implicitly added if they don't exist.
func (g *Graph[N]) AddEdge(from, to N) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Len returns the number of nodes.
func (g *Graph[N]) Len() int { return len(g.nodes) }

// TopologicalSort returns a valid order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// Whenever several nodes are ready, the one added first comes first.
func (g *Graph[N]) TopologicalSort() ([]N, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[N]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	index := make(map[N]int, len(g.nodes))
	ready := make([]N, 0, len(g.nodes))
	for i, node := range g.nodes {
		index[node] = i
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}

	result := make([]N, 0, len(g.nodes))
	for len(ready) > 0 {
		first := 0
		for i := range ready {
			if index[ready[i]] < index[ready[first]] {
				first = i
			}
		}
		node := ready[first]
		ready = slices.Delete(ready, first, first+1)
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				ready = append(ready, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycle []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycle = append(cycle, string(node))
			}
		}
		return nil, &CycleError{Cycle: cycle}
	}

	return result, nil
}

// SortSubset returns the members of subset in topological order, dropping
// every other node. Duplicates in subset are collapsed.
func (g *Graph[N]) SortSubset(subset []N) ([]N, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	want := make(map[N]bool, len(subset))
	for _, n := range subset {
		want[n] = true
	}
	out := make([]N, 0, len(want))
	for _, n := range order {
		if want[n] {
			out = append(out, n)
			delete(want, n)
		}
	}
	return out, nil
}
