package formula

import (
	"sort"

	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
)

func sortFigures(figures []models.KeyFigure) {
	sort.Slice(figures, func(i, j int) bool {
		if figures[i].SortOrder != figures[j].SortOrder {
			return figures[i].SortOrder < figures[j].SortOrder
		}
		return figures[i].Code < figures[j].Code
	})
}

// Registry holds the parsed formulas of a tenant's key figures and validates
// that the set is internally consistent.
type Registry struct {
	figures map[string]*models.KeyFigure
	byID    map[string]*models.KeyFigure
	parsed  map[string]Node
	graph   *Graph
}

// NewRegistry builds a registry from the given key figures. Calculated
// figures must parse, reference only known codes and form no cycles.
func NewRegistry(figures []models.KeyFigure) (*Registry, error) {
	r := &Registry{
		figures: map[string]*models.KeyFigure{},
		byID:    map[string]*models.KeyFigure{},
		parsed:  map[string]Node{},
		graph:   NewGraph(),
	}

	for i := range figures {
		kf := &figures[i]
		if _, exists := r.figures[kf.Code]; exists {
			return nil, errors.Newf(errors.CodeDuplicateKeyFigureCode, "duplicate key figure code %q", kf.Code).WithKeyFigure(kf.Code)
		}
		r.figures[kf.Code] = kf
		if kf.ID != "" {
			r.byID[kf.ID] = kf
		}
	}

	for code, kf := range r.figures {
		if !kf.IsCalculated() {
			continue
		}
		node, err := Parse(kf.Formula)
		if err != nil {
			return nil, err
		}
		deps := Dependencies(node)
		for _, dep := range deps {
			if _, ok := r.figures[dep]; !ok {
				return nil, errors.Newf(errors.CodeUnknownFormulaReference, "formula for %q references unknown key figure %q", code, dep).WithKeyFigure(code)
			}
		}
		r.parsed[code] = node
		r.graph.AddNode(code, deps)
	}

	if err := r.graph.DetectCycle(); err != nil {
		return nil, err
	}
	return r, nil
}

// Figure returns the key figure for a code.
func (r *Registry) Figure(code string) (*models.KeyFigure, bool) {
	kf, ok := r.figures[code]
	return kf, ok
}

// FigureByID returns the key figure with the given ID.
func (r *Registry) FigureByID(id string) (*models.KeyFigure, bool) {
	kf, ok := r.byID[id]
	return kf, ok
}

// Figures returns all registered key figures sorted by sort order then code.
func (r *Registry) Figures() []models.KeyFigure {
	result := make([]models.KeyFigure, 0, len(r.figures))
	for _, kf := range r.figures {
		result = append(result, *kf)
	}
	sortFigures(result)
	return result
}

// Formula returns the parsed formula of a calculated figure.
func (r *Registry) Formula(code string) (Node, bool) {
	node, ok := r.parsed[code]
	return node, ok
}

// DirectDependencies returns the codes a calculated figure references.
func (r *Registry) DirectDependencies(code string) []string {
	return r.graph.DirectDependencies(code)
}

// TransitiveDependencies returns every code reachable from the figure.
func (r *Registry) TransitiveDependencies(code string) []string {
	return r.graph.TransitiveDependencies(code)
}

// CalculationOrder returns the calculated figures in dependency order.
func (r *Registry) CalculationOrder() ([]string, error) {
	return r.graph.TopologicalOrder()
}

// ValidateCandidate checks a formula as if it were saved on the figure with
// the given code, without mutating the registry. It returns the candidate's
// direct dependencies when valid.
func (r *Registry) ValidateCandidate(code, input string) ([]string, error) {
	node, err := Parse(input)
	if err != nil {
		return nil, err
	}
	deps := Dependencies(node)
	for _, dep := range deps {
		if dep == code {
			return nil, errors.Newf(errors.CodeCyclicFormula, "formula for %q references itself", code).WithKeyFigure(code)
		}
		if _, ok := r.figures[dep]; !ok {
			return nil, errors.Newf(errors.CodeUnknownFormulaReference, "formula for %q references unknown key figure %q", code, dep).WithKeyFigure(code)
		}
	}

	candidate := NewGraph()
	for existing, existingDeps := range r.graph.edges {
		if existing == code {
			continue
		}
		candidate.AddNode(existing, existingDeps)
	}
	candidate.AddNode(code, deps)
	if err := candidate.DetectCycle(); err != nil {
		return nil, err
	}
	return deps, nil
}
