package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/models"
)

func newRegistry(t *testing.T, figures ...models.KeyFigure) *formula.Registry {
	t.Helper()
	registry, err := formula.NewRegistry(figures)
	require.NoError(t, err)
	return registry
}

func base(id, code string, agg models.Aggregation) models.KeyFigure {
	return models.KeyFigure{ID: id, Code: code, Name: code, Type: models.KeyFigureBase, Aggregation: agg}
}

func calc(id, code, f string) models.KeyFigure {
	return models.KeyFigure{ID: id, Code: code, Name: code, Type: models.KeyFigureCalculated, Formula: f}
}

func row(figureID, period string, periodType models.Granularity, value float64) models.PlanningData {
	return models.PlanningData{
		ID:          figureID + "-" + period,
		KeyFigureID: figureID,
		TimePeriod:  period,
		PeriodType:  periodType,
		Value:       value,
	}
}

func TestEvaluateExactBaseMatch(t *testing.T) {
	registry := newRegistry(t, base("kf-1", "DEMAND", models.AggregationSum))
	e := New(registry, []models.PlanningData{
		row("kf-1", "2024-01", models.GranularityMonth, 100),
	})

	result, err := e.Evaluate("DEMAND", "2024-01")
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Value)
	assert.True(t, result.HasData)
	require.NotNil(t, result.DataID)
	assert.Equal(t, "kf-1-2024-01", *result.DataID)
}

func TestEvaluateMissingBaseIsZero(t *testing.T) {
	registry := newRegistry(t, base("kf-1", "DEMAND", models.AggregationSum))
	e := New(registry, nil)

	result, err := e.Evaluate("DEMAND", "2024-01")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Value)
	assert.False(t, result.HasData)
	assert.Nil(t, result.DataID)
}

func TestEvaluateRollsUpFinerData(t *testing.T) {
	registry := newRegistry(t, base("kf-1", "DEMAND", models.AggregationSum))
	e := New(registry, []models.PlanningData{
		row("kf-1", "2024-01-01", models.GranularityDay, 10),
		row("kf-1", "2024-01-02", models.GranularityDay, 20),
		row("kf-1", "2024-02-01", models.GranularityDay, 99),
	})

	result, err := e.Evaluate("DEMAND", "2024-01")
	require.NoError(t, err)
	assert.Equal(t, 30.0, result.Value)
	assert.True(t, result.HasData)
	// Rolled up values have no single backing row.
	assert.Nil(t, result.DataID)
}

func TestRollupPrefersCoarsestFinerLevel(t *testing.T) {
	registry := newRegistry(t, base("kf-1", "DEMAND", models.AggregationSum))
	e := New(registry, []models.PlanningData{
		// Month totals and day detail both exist under the quarter. Only
		// the month level is aggregated so nothing is double counted.
		row("kf-1", "2024-01", models.GranularityMonth, 100),
		row("kf-1", "2024-02", models.GranularityMonth, 120),
		row("kf-1", "2024-01-15", models.GranularityDay, 7),
	})

	result, err := e.Evaluate("DEMAND", "2024-Q1")
	require.NoError(t, err)
	assert.Equal(t, 220.0, result.Value)
}

func TestRollupAggregations(t *testing.T) {
	data := []models.PlanningData{
		row("kf-1", "2024-01", models.GranularityMonth, 10),
		row("kf-1", "2024-02", models.GranularityMonth, 30),
		row("kf-1", "2024-03", models.GranularityMonth, 20),
	}

	cases := []struct {
		agg      models.Aggregation
		expected float64
	}{
		{models.AggregationSum, 60},
		{models.AggregationAvg, 20},
		{models.AggregationMin, 10},
		{models.AggregationMax, 30},
		{models.AggregationCount, 3},
	}
	for _, tc := range cases {
		registry := newRegistry(t, base("kf-1", "DEMAND", tc.agg))
		e := New(registry, data)

		result, err := e.Evaluate("DEMAND", "2024-Q1")
		require.NoError(t, err, tc.agg)
		assert.Equal(t, tc.expected, result.Value, tc.agg)
	}
}

func TestWeekAttributedByMonday(t *testing.T) {
	registry := newRegistry(t, base("kf-1", "DEMAND", models.AggregationSum))
	// Week 5 of 2024 starts Monday Jan 29 and spills into February, so its
	// value counts toward January only.
	e := New(registry, []models.PlanningData{
		row("kf-1", "2024-W05", models.GranularityWeek, 50),
	})

	january, err := e.Evaluate("DEMAND", "2024-01")
	require.NoError(t, err)
	assert.Equal(t, 50.0, january.Value)

	february, err := e.Evaluate("DEMAND", "2024-02")
	require.NoError(t, err)
	assert.Equal(t, 0.0, february.Value)
}

func TestEvaluateCalculatedChain(t *testing.T) {
	registry := newRegistry(t,
		base("kf-1", "KF_001", models.AggregationSum),
		base("kf-2", "KF_002", models.AggregationSum),
		calc("kf-3", "KF_003", "KF_001 + KF_002"),
		calc("kf-4", "KF_004", "KF_003 * 2"),
	)
	e := New(registry, []models.PlanningData{
		row("kf-1", "2024-01", models.GranularityMonth, 100),
		row("kf-2", "2024-01", models.GranularityMonth, 40),
	})

	result, err := e.Evaluate("KF_003", "2024-01")
	require.NoError(t, err)
	assert.Equal(t, 140.0, result.Value)
	assert.True(t, result.HasData)

	chained, err := e.Evaluate("KF_004", "2024-01")
	require.NoError(t, err)
	assert.Equal(t, 280.0, chained.Value)
}

func TestCalculatedWithNoInputsHasNoData(t *testing.T) {
	registry := newRegistry(t,
		base("kf-1", "DEMAND", models.AggregationSum),
		calc("kf-2", "FORECAST", "DEMAND * 1.1 + 5"),
	)
	e := New(registry, nil)

	result, err := e.Evaluate("FORECAST", "2024-01")
	require.NoError(t, err)
	// Missing inputs evaluate as zero but the cell is flagged empty.
	assert.Equal(t, 5.0, result.Value)
	assert.False(t, result.HasData)
}

func TestEvaluateUnknownCode(t *testing.T) {
	registry := newRegistry(t, base("kf-1", "DEMAND", models.AggregationSum))
	e := New(registry, nil)

	_, err := e.Evaluate("MISSING", "2024-01")
	require.Error(t, err)

	var planningErr *errors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, errors.CodeUnknownFormulaReference, planningErr.Code)
}

func TestEvaluateAll(t *testing.T) {
	registry := newRegistry(t,
		base("kf-1", "DEMAND", models.AggregationSum),
		calc("kf-2", "DEMAND_PLUS_10PCT", "DEMAND * 1.1"),
	)
	e := New(registry, []models.PlanningData{
		row("kf-1", "2024-01", models.GranularityMonth, 100),
		row("kf-1", "2024-02", models.GranularityMonth, 120),
		row("kf-1", "2024-03", models.GranularityMonth, 90),
	})

	periods := []models.Period{
		{Key: "2024-01", Type: models.GranularityMonth},
		{Key: "2024-02", Type: models.GranularityMonth},
		{Key: "2024-03", Type: models.GranularityMonth},
	}
	results, err := e.EvaluateAll(periods)
	require.NoError(t, err)

	require.Contains(t, results, "DEMAND")
	require.Contains(t, results, "DEMAND_PLUS_10PCT")
	assert.InDelta(t, 110.0, results["DEMAND_PLUS_10PCT"]["2024-01"].Value, 1e-9)
	assert.InDelta(t, 132.0, results["DEMAND_PLUS_10PCT"]["2024-02"].Value, 1e-9)
	assert.InDelta(t, 99.0, results["DEMAND_PLUS_10PCT"]["2024-03"].Value, 1e-9)
}
