package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/models"
)

func monthPeriods(keys ...string) []models.Period {
	periods := make([]models.Period, 0, len(keys))
	for _, key := range keys {
		periods = append(periods, models.Period{Key: key, Type: models.GranularityMonth})
	}
	return periods
}

func TestBuildGrid(t *testing.T) {
	registry, err := formula.NewRegistry([]models.KeyFigure{
		{ID: "kf-1", Code: "DEMAND", Name: "Demand", Type: models.KeyFigureBase, Aggregation: models.AggregationSum, Editable: true, SortOrder: 1},
		{ID: "kf-2", Code: "DEMAND_PLUS_10PCT", Name: "Demand +10%", Type: models.KeyFigureCalculated, Formula: "DEMAND * 1.1", SortOrder: 2},
	})
	require.NoError(t, err)

	notes := "promo uplift"
	data := []models.PlanningData{
		{ID: "pd-1", KeyFigureID: "kf-1", TimePeriod: "2024-01", PeriodType: models.GranularityMonth, Value: 100, Notes: &notes},
		{ID: "pd-2", KeyFigureID: "kf-1", TimePeriod: "2024-02", PeriodType: models.GranularityMonth, Value: 120},
		{ID: "pd-3", KeyFigureID: "kf-1", TimePeriod: "2024-03", PeriodType: models.GranularityMonth, Value: 90},
	}

	g, err := Build("v-1", models.GranularityMonth, registry, monthPeriods("2024-01", "2024-02", "2024-03"), data)
	require.NoError(t, err)

	require.Len(t, g.Rows, 2)
	require.Len(t, g.Columns, 3)

	demand := g.Rows[0]
	assert.Equal(t, "DEMAND", demand.Code)
	assert.True(t, demand.Cells[0].Editable)
	assert.Equal(t, 100.0, demand.Cells[0].Value)
	require.NotNil(t, demand.Cells[0].DataID)
	assert.Equal(t, "pd-1", *demand.Cells[0].DataID)
	require.NotNil(t, demand.Cells[0].Notes)
	assert.Equal(t, "promo uplift", *demand.Cells[0].Notes)

	calculated := g.Rows[1]
	assert.Equal(t, "DEMAND_PLUS_10PCT", calculated.Code)
	assert.False(t, calculated.Cells[0].Editable)
	assert.Nil(t, calculated.Cells[0].DataID)
	assert.InDelta(t, 110.0, calculated.Cells[0].Value, 1e-9)
	assert.InDelta(t, 132.0, calculated.Cells[1].Value, 1e-9)
	assert.InDelta(t, 99.0, calculated.Cells[2].Value, 1e-9)
}

func TestBuildGridEmptyCells(t *testing.T) {
	registry, err := formula.NewRegistry([]models.KeyFigure{
		{ID: "kf-1", Code: "DEMAND", Name: "Demand", Type: models.KeyFigureBase, Aggregation: models.AggregationSum, Editable: true},
	})
	require.NoError(t, err)

	g, err := Build("v-1", models.GranularityMonth, registry, monthPeriods("2024-01"), nil)
	require.NoError(t, err)

	require.Len(t, g.Rows, 1)
	cell := g.Rows[0].Cells[0]
	assert.Equal(t, 0.0, cell.Value)
	assert.False(t, cell.HasData)
	assert.Nil(t, cell.DataID)
}

func TestBuildGridNoPeriods(t *testing.T) {
	registry, err := formula.NewRegistry([]models.KeyFigure{
		{ID: "kf-1", Code: "DEMAND", Name: "Demand", Type: models.KeyFigureBase, Aggregation: models.AggregationSum},
	})
	require.NoError(t, err)

	g, err := Build("v-1", models.GranularityMonth, registry, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, g.Rows)
	assert.Empty(t, g.Columns)
}
