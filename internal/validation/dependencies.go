package validation

import (
	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// DependencyGraph is an adjacency list keyed by milestoneId
type DependencyGraph map[string][]string

// BuildDependencyGraph collects the dependency edges of a contract's milestones
func BuildDependencyGraph(milestones []models.Milestone) DependencyGraph {
	g := make(DependencyGraph, len(milestones))
	for i := range milestones {
		m := &milestones[i]
		g[m.MilestoneID] = append([]string(nil), m.Dependencies...)
	}
	return g
}

// Dependencies checks that every dependency of id exists in the graph and
// that replacing id's edges with deps keeps the graph acyclic. The graph is
// not modified.
func Dependencies(graph DependencyGraph, id string, deps []string) error {
	for _, dep := range deps {
		if dep == id {
			return apperr.New(apperr.KindCircularDependency, "milestone %s cannot depend on itself", id)
		}
		if _, ok := graph[dep]; !ok {
			return apperr.New(apperr.KindUnknownDependency, "milestone dependency %s does not exist", dep)
		}
	}

	candidate := make(DependencyGraph, len(graph)+1)
	for k, v := range graph {
		candidate[k] = v
	}
	candidate[id] = deps

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(candidate))

	var visit func(node string) bool
	visit = func(node string) bool {
		switch state[node] {
		case visiting:
			return true
		case visited:
			return false
		}
		state[node] = visiting
		for _, next := range candidate[node] {
			if visit(next) {
				return true
			}
		}
		state[node] = visited
		return false
	}

	if visit(id) {
		return apperr.New(apperr.KindCircularDependency, "dependencies of milestone %s would create a cycle", id)
	}
	return nil
}
