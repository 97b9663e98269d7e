package formula

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/sage/pkg/errors"
)

// Graph holds the dependency edges between calculated key figures.
type Graph struct {
	// edges maps a calculated figure's code to the codes it references.
	edges map[string][]string
}

func NewGraph() *Graph {
	return &Graph{edges: map[string][]string{}}
}

// AddNode records a figure and its direct dependencies.
func (g *Graph) AddNode(code string, deps []string) {
	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)
	g.edges[code] = sorted
}

// DirectDependencies returns the direct dependencies of a figure.
func (g *Graph) DirectDependencies(code string) []string {
	return append([]string(nil), g.edges[code]...)
}

// TransitiveDependencies returns every figure reachable from code, sorted.
func (g *Graph) TransitiveDependencies(code string) []string {
	seen := map[string]struct{}{}
	var walk func(string)
	walk = func(current string) {
		for _, dep := range g.edges[current] {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			walk(dep)
		}
	}
	walk(code)

	result := make([]string, 0, len(seen))
	for dep := range seen {
		result = append(result, dep)
	}
	sort.Strings(result)
	return result
}

// DetectCycle returns a cyclic formula error naming the cycle path when the
// graph contains one, nil otherwise.
func (g *Graph) DetectCycle() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}

	codes := make([]string, 0, len(g.edges))
	for code := range g.edges {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var path []string
	var visit func(string) error
	visit = func(code string) error {
		switch state[code] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, c := range path {
				if c == code {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), code)
			return errors.Newf(errors.CodeCyclicFormula, "formula cycle: %s", strings.Join(cycle, " -> "))
		}
		state[code] = visiting
		path = append(path, code)
		for _, dep := range g.edges[code] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[code] = done
		return nil
	}

	for _, code := range codes {
		if err := visit(code); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns the figures ordered so every dependency precedes
// its dependents. Ties are broken alphabetically so the order is stable.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycle(); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(g.edges))
	for code := range g.edges {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	visited := map[string]bool{}
	order := make([]string, 0, len(codes))
	var visit func(string)
	visit = func(code string) {
		if visited[code] {
			return
		}
		visited[code] = true
		for _, dep := range g.edges[code] {
			if _, known := g.edges[dep]; known {
				visit(dep)
			}
		}
		order = append(order, code)
	}
	for _, code := range codes {
		visit(code)
	}
	return order, nil
}
