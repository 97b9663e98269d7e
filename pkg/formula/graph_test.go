package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
)

func baseFigure(code string) models.KeyFigure {
	return models.KeyFigure{Code: code, Name: code, Type: models.KeyFigureBase, Aggregation: models.AggregationSum}
}

func calcFigure(code, f string) models.KeyFigure {
	return models.KeyFigure{Code: code, Name: code, Type: models.KeyFigureCalculated, Formula: f}
}

func TestGraphCycleDetection(t *testing.T) {
	g := NewGraph()
	g.AddNode("A", []string{"B"})
	g.AddNode("B", []string{"A"})

	err := g.DetectCycle()
	require.Error(t, err)

	var planningErr *errors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, errors.CodeCyclicFormula, planningErr.Code)
	assert.Contains(t, planningErr.Message, "A -> B -> A")
}

func TestGraphTopologicalOrder(t *testing.T) {
	g := NewGraph()
	g.AddNode("TOTAL", []string{"NET", "TAX"})
	g.AddNode("NET", []string{"GROSS"})
	g.AddNode("TAX", []string{"GROSS"})
	g.AddNode("GROSS", nil)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := map[string]int{}
	for i, code := range order {
		pos[code] = i
	}
	assert.Less(t, pos["GROSS"], pos["NET"])
	assert.Less(t, pos["GROSS"], pos["TAX"])
	assert.Less(t, pos["NET"], pos["TOTAL"])
	assert.Less(t, pos["TAX"], pos["TOTAL"])

	// Order is deterministic across runs.
	again, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, order, again)
}

func TestGraphTransitiveDependencies(t *testing.T) {
	g := NewGraph()
	g.AddNode("TOTAL", []string{"NET"})
	g.AddNode("NET", []string{"GROSS"})

	assert.Equal(t, []string{"NET"}, g.DirectDependencies("TOTAL"))
	assert.Equal(t, []string{"GROSS", "NET"}, g.TransitiveDependencies("TOTAL"))
}

func TestRegistryRejectsCycle(t *testing.T) {
	_, err := NewRegistry([]models.KeyFigure{
		calcFigure("A", "B + 1"),
		calcFigure("B", "A * 2"),
	})
	require.Error(t, err)

	var planningErr *errors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, errors.CodeCyclicFormula, planningErr.Code)
}

func TestRegistryRejectsUnknownReference(t *testing.T) {
	_, err := NewRegistry([]models.KeyFigure{
		baseFigure("DEMAND"),
		calcFigure("FORECAST", "DEMAND + MISSING"),
	})
	require.Error(t, err)

	var planningErr *errors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, errors.CodeUnknownFormulaReference, planningErr.Code)
}

func TestRegistryRejectsDuplicateCodes(t *testing.T) {
	_, err := NewRegistry([]models.KeyFigure{
		baseFigure("DEMAND"),
		baseFigure("DEMAND"),
	})
	require.Error(t, err)

	var planningErr *errors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, errors.CodeDuplicateKeyFigureCode, planningErr.Code)
}

func TestRegistryCalculationOrder(t *testing.T) {
	r, err := NewRegistry([]models.KeyFigure{
		baseFigure("DEMAND"),
		calcFigure("FORECAST", "DEMAND * 1.1"),
		calcFigure("REVENUE", "FORECAST * 10"),
	})
	require.NoError(t, err)

	order, err := r.CalculationOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"FORECAST", "REVENUE"}, order)
}

func TestRegistryValidateCandidate(t *testing.T) {
	r, err := NewRegistry([]models.KeyFigure{
		baseFigure("DEMAND"),
		calcFigure("FORECAST", "DEMAND * 1.1"),
	})
	require.NoError(t, err)

	// Valid candidate referencing existing figures.
	deps, err := r.ValidateCandidate("REVENUE", "FORECAST * 10")
	require.NoError(t, err)
	assert.Equal(t, []string{"FORECAST"}, deps)

	// Self reference is a cycle.
	_, err = r.ValidateCandidate("REVENUE", "REVENUE + 1")
	require.Error(t, err)

	// Replacing FORECAST with a formula referencing a figure that depends
	// on it would create a cycle once saved.
	_, err = r.ValidateCandidate("DEMAND", "FORECAST / 1.1")
	require.Error(t, err)
}
