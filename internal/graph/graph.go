// Package graph implements the in-memory dependency graph the engine uses
// for scheduling: eligibility, cycle detection, and change-impact queries.
package graph

import (
	"fmt"

	"github.com/petrijr/gantry/pkg/api"
)

// Graph is a directed graph over step identifiers. Edges point from a step
// to the steps it depends on; a reverse index answers dependent queries.
//
// Graph is not goroutine-safe; the engine serializes access per workflow.
type Graph struct {
	order      []string            // insertion order, used for deterministic tie-breaking
	deps       map[string][]string // node -> its dependencies
	dependents map[string][]string // node -> nodes that depend on it
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// Add inserts a node with its declared dependencies. Duplicate IDs are an
// error. Dependencies may reference nodes that have not been added yet;
// Validate checks referential integrity once the graph is complete.
func (g *Graph) Add(id string, deps ...string) error {
	if _, exists := g.deps[id]; exists {
		return fmt.Errorf("node %q: %w", id, api.ErrDuplicateStep)
	}

	g.order = append(g.order, id)
	g.deps[id] = append([]string(nil), deps...)
	for _, d := range deps {
		g.dependents[d] = append(g.dependents[d], id)
	}
	return nil
}

// Remove deletes a node and every edge touching it.
func (g *Graph) Remove(id string) {
	if _, exists := g.deps[id]; !exists {
		return
	}

	for _, d := range g.deps[id] {
		g.dependents[d] = without(g.dependents[d], id)
	}
	delete(g.deps, id)

	for _, dep := range g.dependents[id] {
		g.deps[dep] = without(g.deps[dep], id)
	}
	delete(g.dependents, id)

	g.order = without(g.order, id)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.deps)
}

// Nodes returns all node IDs in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Validate checks referential integrity and acyclicity. Unknown dependency
// references are reported per edge; cycles are reported with every
// participating node so the caller can produce an actionable error.
func (g *Graph) Validate() error {
	for _, id := range g.order {
		for _, d := range g.deps[id] {
			if d == id {
				return &api.CycleError{Nodes: []string{id}}
			}
			if _, ok := g.deps[d]; !ok {
				return &api.UnknownDependencyError{StepID: id, DependencyID: d}
			}
		}
	}

	if nodes := g.CycleNodes(); len(nodes) > 0 {
		return &api.CycleError{Nodes: nodes}
	}
	return nil
}

// HasCycle reports whether the graph contains at least one dependency cycle.
func (g *Graph) HasCycle() bool {
	return len(g.CycleNodes()) > 0
}

// CycleNodes returns every node that participates in a cycle, in insertion
// order. Detection is a depth-first traversal with an explicit recursion
// stack: when an edge reaches a node currently on the stack, the stack
// segment from that node to the top is one cycle.
func (g *Graph) CycleNodes() []string {
	const (
		white = iota // unvisited
		grey         // on the recursion stack
		black        // finished
	)

	state := make(map[string]int, len(g.deps))
	inCycle := make(map[string]struct{})
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = grey
		stack = append(stack, id)

		for _, d := range g.deps[id] {
			if _, known := g.deps[d]; !known {
				continue // dangling refs are Validate's concern
			}
			switch state[d] {
			case white:
				visit(d)
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					inCycle[stack[i]] = struct{}{}
					if stack[i] == d {
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = black
	}

	for _, id := range g.order {
		if state[id] == white {
			visit(id)
		}
	}

	if len(inCycle) == 0 {
		return nil
	}
	out := make([]string, 0, len(inCycle))
	for _, id := range g.order {
		if _, ok := inCycle[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Eligible returns every node whose status is PENDING and whose declared
// dependencies are all COMPLETED. This and only this is the scheduling
// policy; ties are broken by declaration order for determinism.
func (g *Graph) Eligible(statusOf func(id string) api.StepStatus) []string {
	var out []string

	for _, id := range g.order {
		if statusOf(id) != api.StepPending {
			continue
		}
		ready := true
		for _, d := range g.deps[id] {
			if statusOf(d) != api.StepCompleted {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, id)
		}
	}
	return out
}

// AffectedBy returns the reflexive-transitive closure of dependents of the
// given nodes: the nodes themselves plus everything that depends on them,
// directly or transitively. It is a breadth-first traversal over the
// reverse-dependency index with a visited set.
func (g *Graph) AffectedBy(ids ...string) map[string]struct{} {
	visited := make(map[string]struct{})
	var queue []string

	for _, id := range ids {
		if _, known := g.deps[id]; !known {
			continue
		}
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, dep := range g.dependents[id] {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	return visited
}

func without(s []string, id string) []string {
	out := s[:0]
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
