// Package graph provides the dependency graph used to schedule sub-tasks.
package graph

import (
	"sort"
	"sync"

	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// DependencyGraph is a directed graph over sub-task ids. An edge from A to
// B means A depends on B. The node and edge sets are fixed by Build;
// completion marks are the only mutation afterwards.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps sub-task id to the sub-task itself.
	nodes map[string]*models.SubTask
	// edges maps sub-task id to the ids it depends on.
	edges map[string][]string
	// completed tracks which sub-tasks have been marked complete.
	completed map[string]bool
	// hasCycle is computed once during Build.
	hasCycle bool
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.SubTask),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
	}
}

// Build registers the sub-tasks and their dependency edges, then computes
// the cycle flag. Dependencies that reference ids outside the set are
// dropped rather than rejected; the decomposer's heuristic only ever
// produces in-set references.
func (g *DependencyGraph) Build(tasks []*models.SubTask) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, t := range tasks {
		g.nodes[t.ID] = t
		g.edges[t.ID] = nil
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.nodes[dep]; ok {
				g.edges[t.ID] = append(g.edges[t.ID], dep)
			}
		}
	}
	g.hasCycle = g.detectCycleLocked()
}

// HasCycle reports whether the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycle
}

// detectCycleLocked runs a depth-first search with coloring. Gray nodes
// are on the current path; an edge into a gray node is a back edge.
func (g *DependencyGraph) detectCycleLocked() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for id := range g.nodes {
		if colors[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// ParallelLevels groups sub-task ids into levels that can run
// concurrently: each level contains the ids whose dependencies have all
// been emitted by earlier levels. When a cyclic remainder blocks
// progress, the remainder is emitted as a single final group; callers
// must consult HasCycle before treating the levels as a schedule.
func (g *DependencyGraph) ParallelLevels() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	remaining := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string)
	for id, deps := range g.edges {
		remaining[id] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	emitted := make(map[string]bool, len(g.nodes))
	var levels [][]string

	for len(emitted) < len(g.nodes) {
		var level []string
		for id := range g.nodes {
			if !emitted[id] && remaining[id] == 0 {
				level = append(level, id)
			}
		}
		if len(level) == 0 {
			// Cyclic remainder: emit everything left as one group.
			var rest []string
			for id := range g.nodes {
				if !emitted[id] {
					rest = append(rest, id)
				}
			}
			sort.Strings(rest)
			return append(levels, rest)
		}
		sort.Strings(level)
		for _, id := range level {
			emitted[id] = true
			for _, dependent := range dependents[id] {
				remaining[dependent]--
			}
		}
		levels = append(levels, level)
	}
	return levels
}

// Ready returns the ids whose dependencies are all complete and that are
// not themselves complete. These can be assigned in parallel.
func (g *DependencyGraph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id := range g.nodes {
		if g.completed[id] {
			continue
		}
		ok := true
		for _, dep := range g.edges[id] {
			if !g.completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

// MarkComplete marks a sub-task as completed, unblocking its dependents.
func (g *DependencyGraph) MarkComplete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[id] = true
}

// Task returns the sub-task for an id, or nil if unknown.
func (g *DependencyGraph) Task(id string) *models.SubTask {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of sub-tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of dependency edges.
func (g *DependencyGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, deps := range g.edges {
		n += len(deps)
	}
	return n
}

// Dependencies returns the ids a sub-task depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the ids that depend on a sub-task.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for node, deps := range g.edges {
		for _, dep := range deps {
			if dep == id {
				out = append(out, node)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
