// Package topsort checks dependency ordering between named link stages.
package topsort

import (
	"fmt"
	"sort"
)

// Graph maps a stage name to the stages it depends on.
type Graph map[string][]string

// Sort returns nodes in dependency order, dependencies first.
// Returns an error if a cycle is detected or a dependency is undefined.
//
// If nodes is nil, every node in the graph is sorted; otherwise only the given
// nodes and their transitive dependencies are included.
func Sort(g Graph, nodes []string) ([]string, error) {
	if nodes == nil {
		nodes = make([]string, 0, len(g))
		for name := range g {
			nodes = append(nodes, name)
		}
		sort.Strings(nodes)
	}

	var result []string
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		if inStack[name] {
			return fmt.Errorf("circular dependency: %s", formatCycle(append(path, name)))
		}
		if visited[name] {
			return nil
		}

		deps, exists := g[name]
		if !exists {
			return fmt.Errorf("stage %q not found", name)
		}

		inStack[name] = true
		for _, dep := range deps {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		inStack[name] = false
		visited[name] = true
		result = append(result, name)
		return nil
	}

	for _, name := range nodes {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Validate checks the graph for self-references, undefined dependencies
// and cycles.
func Validate(g Graph) error {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, dep := range g[name] {
			if dep == name {
				return fmt.Errorf("stage %q depends on itself", name)
			}
			if _, ok := g[dep]; !ok {
				return fmt.Errorf("stage %q depends on undefined stage %q", name, dep)
			}
		}
	}

	_, err := Sort(g, nil)
	return err
}

// CheckOrder verifies that order is a valid execution sequence for g: every
// dependency of a stage appears before it. Stages run strictly in declared
// order, so a dependency declared later is a configuration error rather
// than something to reorder silently.
func CheckOrder(g Graph, order []string) error {
	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}
	for i, name := range order {
		for _, dep := range g[name] {
			p, ok := position[dep]
			if !ok {
				return fmt.Errorf("stage %q depends on %q, which is not in the stage list", name, dep)
			}
			if p >= i {
				return fmt.Errorf("stage %q depends on %q, which is declared after it", name, dep)
			}
		}
	}
	return nil
}

func formatCycle(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += " -> "
		}
		s += p
	}
	return s
}
