// Package grid assembles the two dimensional planning view served to
// clients: key figure rows crossed with time period columns.
package grid

import (
	"github.com/Ramsey-B/sage/pkg/evaluator"
	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/models"
)

// Cell is one value at the intersection of a key figure and a period.
type Cell struct {
	Period  string  `json:"period"`
	Value   float64 `json:"value"`
	HasData bool    `json:"has_data"`
	// DataID identifies the stored row backing an exact base cell match,
	// letting clients target updates at it.
	DataID   *string `json:"data_id,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	Editable bool    `json:"editable"`
}

// Row is one key figure across every period column.
type Row struct {
	KeyFigureID string               `json:"key_figure_id"`
	Code        string               `json:"code"`
	Name        string               `json:"name"`
	Type        models.KeyFigureType `json:"type"`
	Unit        string               `json:"unit,omitempty"`
	Cells       []Cell               `json:"cells"`
}

// Grid is the assembled planning view for one version and level.
type Grid struct {
	VersionID string             `json:"version_id"`
	Level     models.Granularity `json:"level"`
	Columns   []models.Period    `json:"columns"`
	Rows      []Row              `json:"rows"`
}

// Build assembles the grid for one version. Rows follow the registry's sort
// order, calculated figures evaluated after their dependencies. Empty inputs
// produce an empty grid rather than an error.
func Build(versionID string, level models.Granularity, registry *formula.Registry, periods []models.Period, data []models.PlanningData) (*Grid, error) {
	g := &Grid{
		VersionID: versionID,
		Level:     level,
		Columns:   periods,
		Rows:      []Row{},
	}
	if len(periods) == 0 {
		return g, nil
	}

	eval := evaluator.New(registry, data)
	results, err := eval.EvaluateAll(periods)
	if err != nil {
		return nil, err
	}

	for _, kf := range registry.Figures() {
		row := Row{
			KeyFigureID: kf.ID,
			Code:        kf.Code,
			Name:        kf.Name,
			Type:        kf.Type,
			Unit:        kf.Unit,
			Cells:       make([]Cell, 0, len(periods)),
		}
		editable := kf.Editable && !kf.IsCalculated()
		for _, period := range periods {
			result := results[kf.Code][period.Key]
			row.Cells = append(row.Cells, Cell{
				Period:   period.Key,
				Value:    result.Value,
				HasData:  result.HasData,
				DataID:   result.DataID,
				Notes:    result.Notes,
				Editable: editable,
			})
		}
		g.Rows = append(g.Rows, row)
	}
	return g, nil
}
