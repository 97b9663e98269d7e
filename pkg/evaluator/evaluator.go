// Package evaluator computes key figure values for planning periods. Base
// figures read stored cells, rolling finer-grained data up when no exact
// match exists. Calculated figures evaluate their formula over the same
// period, memoized per evaluation pass.
package evaluator

import (
	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/horizon"
	"github.com/Ramsey-B/sage/pkg/models"
)

// Result is one evaluated cell.
type Result struct {
	Value float64
	// HasData is false when no stored cell contributed to the value, in
	// which case Value is zero.
	HasData bool
	// DataID points at the stored row when the value came from an exact
	// base cell match.
	DataID *string
	// Notes carries the stored cell's notes on an exact match.
	Notes *string
}

// Evaluator resolves key figure values over one version's planning data
// snapshot. It is cheap to construct and not safe for concurrent use.
type Evaluator struct {
	registry *formula.Registry
	// cells indexes stored rows by key figure code then period key.
	cells map[string]map[string]*models.PlanningData
	// rows keeps every stored row per code for granularity rollups.
	rows map[string][]*models.PlanningData
	memo map[string]Result
}

// New builds an evaluator over a snapshot of stored planning data. Rows for
// key figures missing from the registry are ignored.
func New(registry *formula.Registry, data []models.PlanningData) *Evaluator {
	e := &Evaluator{
		registry: registry,
		cells:    map[string]map[string]*models.PlanningData{},
		rows:     map[string][]*models.PlanningData{},
		memo:     map[string]Result{},
	}
	for i := range data {
		row := &data[i]
		kf, ok := registry.FigureByID(row.KeyFigureID)
		if !ok {
			continue
		}
		if e.cells[kf.Code] == nil {
			e.cells[kf.Code] = map[string]*models.PlanningData{}
		}
		e.cells[kf.Code][row.TimePeriod] = row
		e.rows[kf.Code] = append(e.rows[kf.Code], row)
	}
	return e
}

// Evaluate resolves the value of one key figure for one period.
func (e *Evaluator) Evaluate(code, period string) (Result, error) {
	memoKey := code + "|" + period
	if cached, ok := e.memo[memoKey]; ok {
		return cached, nil
	}

	kf, ok := e.registry.Figure(code)
	if !ok {
		return Result{}, errors.Newf(errors.CodeUnknownFormulaReference, "unknown key figure %q", code).WithKeyFigure(code).WithPeriod(period)
	}

	var result Result
	var err error
	if kf.IsCalculated() {
		result, err = e.evaluateCalculated(kf, period)
	} else {
		result, err = e.evaluateBase(kf, period)
	}
	if err != nil {
		return Result{}, err
	}
	e.memo[memoKey] = result
	return result, nil
}

func (e *Evaluator) evaluateBase(kf *models.KeyFigure, period string) (Result, error) {
	if row, ok := e.cells[kf.Code][period]; ok {
		return Result{Value: row.Value, HasData: true, DataID: &row.ID, Notes: row.Notes}, nil
	}
	return e.rollup(kf, period)
}

// rollup aggregates stored rows at the finest granularity finer than the
// requested period whose start dates fall inside it. A week is attributed
// to the month, quarter and year containing its Monday.
func (e *Evaluator) rollup(kf *models.KeyFigure, period string) (Result, error) {
	target, _, err := horizon.ParsePeriod(period)
	if err != nil {
		return Result{}, err
	}

	var candidates []*models.PlanningData
	var candidateLevel models.Granularity
	for _, row := range e.rows[kf.Code] {
		if !horizon.FinerThan(row.PeriodType, target) {
			continue
		}
		inside, err := horizon.Contains(period, row.TimePeriod)
		if err != nil {
			return Result{}, err
		}
		if !inside {
			continue
		}
		switch {
		case candidateLevel == "" || horizon.FinerThan(candidateLevel, row.PeriodType):
			// Prefer the coarsest stored level below the target so values
			// entered at, say, month level are not double counted with days.
			candidates = []*models.PlanningData{row}
			candidateLevel = row.PeriodType
		case row.PeriodType == candidateLevel:
			candidates = append(candidates, row)
		}
	}

	if len(candidates) == 0 {
		return Result{}, nil
	}
	return Result{Value: aggregate(kf.Aggregation, candidates), HasData: true}, nil
}

func aggregate(agg models.Aggregation, rows []*models.PlanningData) float64 {
	switch agg {
	case models.AggregationCount:
		return float64(len(rows))
	case models.AggregationMin:
		min := rows[0].Value
		for _, row := range rows[1:] {
			if row.Value < min {
				min = row.Value
			}
		}
		return min
	case models.AggregationMax:
		max := rows[0].Value
		for _, row := range rows[1:] {
			if row.Value > max {
				max = row.Value
			}
		}
		return max
	case models.AggregationAvg:
		var sum float64
		for _, row := range rows {
			sum += row.Value
		}
		return sum / float64(len(rows))
	default:
		var sum float64
		for _, row := range rows {
			sum += row.Value
		}
		return sum
	}
}

func (e *Evaluator) evaluateCalculated(kf *models.KeyFigure, period string) (Result, error) {
	node, ok := e.registry.Formula(kf.Code)
	if !ok {
		return Result{}, errors.Newf(errors.CodeInvalidFormula, "key figure %q has no parsed formula", kf.Code).WithKeyFigure(kf.Code)
	}

	hasData := false
	value, err := formula.Eval(node, func(ref string) (float64, error) {
		dep, err := e.Evaluate(ref, period)
		if err != nil {
			return 0, err
		}
		if dep.HasData {
			hasData = true
		}
		return dep.Value, nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Value: value, HasData: hasData}, nil
}

// EvaluateAll resolves every key figure over the given periods, calculated
// figures in dependency order. Results are keyed by code then period key.
func (e *Evaluator) EvaluateAll(periods []models.Period) (map[string]map[string]Result, error) {
	order, err := e.registry.CalculationOrder()
	if err != nil {
		return nil, err
	}

	results := map[string]map[string]Result{}
	evaluate := func(code string) error {
		results[code] = map[string]Result{}
		for _, period := range periods {
			result, err := e.Evaluate(code, period.Key)
			if err != nil {
				return err
			}
			results[code][period.Key] = result
		}
		return nil
	}

	for _, kf := range e.registry.Figures() {
		if kf.IsCalculated() {
			continue
		}
		if err := evaluate(kf.Code); err != nil {
			return nil, err
		}
	}
	for _, code := range order {
		if err := evaluate(code); err != nil {
			return nil, err
		}
	}
	return results, nil
}
