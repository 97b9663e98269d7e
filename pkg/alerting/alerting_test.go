package alerting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/horizon"
	"github.com/Ramsey-B/sage/pkg/models"
)

type fakeRules struct {
	rules []models.AlertRule
}

func (f *fakeRules) ListEnabled(context.Context) ([]models.AlertRule, error) {
	return f.rules, nil
}

type fakeSettings struct {
	settings map[string]*models.TimeSetting
}

func (f *fakeSettings) Get(_ context.Context, id string) (*models.TimeSetting, error) {
	return f.settings[id], nil
}

type fakeAlerts struct {
	alerts  []models.Alert
	nextID  int
	created int
}

func (f *fakeAlerts) ListUnresolved(_ context.Context, versionID string) ([]models.Alert, error) {
	var result []models.Alert
	for _, alert := range f.alerts {
		if alert.VersionID == versionID && !alert.Resolved {
			result = append(result, alert)
		}
	}
	return result, nil
}

func (f *fakeAlerts) Create(_ context.Context, alert *models.Alert) (*models.Alert, error) {
	f.nextID++
	f.created++
	alert.ID = fmt.Sprintf("alert-%d", f.nextID)
	f.alerts = append(f.alerts, *alert)
	return alert, nil
}

func (f *fakeAlerts) RefreshValue(_ context.Context, id string, actualValue float64, message string) error {
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			f.alerts[i].ActualValue = actualValue
			f.alerts[i].Message = message
			return nil
		}
	}
	return fmt.Errorf("alert %s not found", id)
}

func (f *fakeAlerts) resolve(id string) {
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			f.alerts[i].Resolved = true
		}
	}
}

func testEngine(t *testing.T, rules []models.AlertRule) (*Engine, *fakeAlerts, *formula.Registry, []models.PlanningData) {
	t.Helper()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	settings := &fakeSettings{settings: map[string]*models.TimeSetting{
		"ts-1": {
			ID:          "ts-1",
			Name:        "fy24",
			HorizonType: models.HorizonFixed,
			StartDate:   &start,
			EndDate:     &end,
			BaseLevel:   models.GranularityMonth,
			Hierarchy:   models.TimeHierarchy{Month: true},
		},
	}}

	registry, err := formula.NewRegistry([]models.KeyFigure{
		{ID: "kf-1", Code: "DEMAND", Name: "Demand", Type: models.KeyFigureBase, Aggregation: models.AggregationSum},
	})
	require.NoError(t, err)

	data := []models.PlanningData{
		{ID: "pd-1", KeyFigureID: "kf-1", TimePeriod: "2024-01", PeriodType: models.GranularityMonth, Value: 100},
		{ID: "pd-2", KeyFigureID: "kf-1", TimePeriod: "2024-02", PeriodType: models.GranularityMonth, Value: 40},
	}

	sink := &fakeAlerts{}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	engine := NewEngine(&fakeRules{rules: rules}, settings, sink, horizon.NewResolver(nil), logger)
	return engine, sink, registry, data
}

func belowFiftyRule() models.AlertRule {
	return models.AlertRule{
		ID:            "rule-1",
		Name:          "demand too low",
		KeyFigureID:   "kf-1",
		TimeSettingID: "ts-1",
		Level:         models.GranularityMonth,
		AlertType:     models.AlertTypeThreshold,
		Operator:      models.OperatorLessThan,
		Threshold:     50,
		Severity:      models.SeverityWarning,
		Enabled:       true,
	}
}

func TestEvaluateRaisesAlerts(t *testing.T) {
	engine, sink, registry, data := testEngine(t, []models.AlertRule{belowFiftyRule()})

	resp, err := engine.EvaluateVersion(context.Background(), "v-1", registry, data)
	require.NoError(t, err)

	// Three months evaluated, only February breaches. March has no data.
	assert.Equal(t, 3, resp.Evaluated)
	assert.Equal(t, 1, resp.Raised)
	assert.Equal(t, 0, resp.Refreshed)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "2024-02", resp.Alerts[0].TimePeriod)
	assert.Equal(t, 40.0, resp.Alerts[0].ActualValue)
	assert.Equal(t, models.SeverityWarning, resp.Alerts[0].Severity)
	assert.Equal(t, models.AlertTypeThreshold, resp.Alerts[0].AlertType)
	assert.Equal(t, 1, sink.created)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	engine, sink, registry, data := testEngine(t, []models.AlertRule{belowFiftyRule()})
	ctx := context.Background()

	first, err := engine.EvaluateVersion(ctx, "v-1", registry, data)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Raised)

	// Second run over unchanged data refreshes instead of duplicating.
	second, err := engine.EvaluateVersion(ctx, "v-1", registry, data)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Raised)
	assert.Equal(t, 1, second.Refreshed)
	assert.Equal(t, 1, sink.created)
}

func TestEvaluateRefreshesActualValue(t *testing.T) {
	engine, sink, registry, data := testEngine(t, []models.AlertRule{belowFiftyRule()})
	ctx := context.Background()

	_, err := engine.EvaluateVersion(ctx, "v-1", registry, data)
	require.NoError(t, err)

	// The breaching value moved but still breaches.
	data[1].Value = 45
	resp, err := engine.EvaluateVersion(ctx, "v-1", registry, data)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Refreshed)
	assert.Equal(t, 45.0, resp.Alerts[0].ActualValue)
	assert.Equal(t, 45.0, sink.alerts[0].ActualValue)
}

func TestResolvedAlertStillBreachingRaisesNew(t *testing.T) {
	engine, sink, registry, data := testEngine(t, []models.AlertRule{belowFiftyRule()})
	ctx := context.Background()

	first, err := engine.EvaluateVersion(ctx, "v-1", registry, data)
	require.NoError(t, err)
	require.Len(t, first.Alerts, 1)

	sink.resolve(first.Alerts[0].ID)

	second, err := engine.EvaluateVersion(ctx, "v-1", registry, data)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Raised)
	assert.Equal(t, 2, sink.created)
}

func TestRuleSkippedForUnknownKeyFigure(t *testing.T) {
	rule := belowFiftyRule()
	rule.KeyFigureID = "kf-missing"
	engine, sink, registry, data := testEngine(t, []models.AlertRule{rule})

	resp, err := engine.EvaluateVersion(context.Background(), "v-1", registry, data)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Evaluated)
	assert.Equal(t, 0, sink.created)
}

func TestRuleSkippedForMissingTimeSetting(t *testing.T) {
	rule := belowFiftyRule()
	rule.TimeSettingID = "ts-missing"
	engine, sink, registry, data := testEngine(t, []models.AlertRule{rule})

	resp, err := engine.EvaluateVersion(context.Background(), "v-1", registry, data)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Evaluated)
	assert.Equal(t, 0, sink.created)
}

func TestOperators(t *testing.T) {
	cases := []struct {
		op       models.AlertOperator
		value    float64
		breached bool
	}{
		{models.OperatorGreaterThan, 51, true},
		{models.OperatorGreaterThan, 50, false},
		{models.OperatorGreaterThanEqual, 50, true},
		{models.OperatorLessThan, 49, true},
		{models.OperatorLessThan, 50, false},
		{models.OperatorLessThanEqual, 50, true},
		{models.OperatorEqual, 50, true},
		{models.OperatorEqual, 49, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.breached, breaches(tc.op, tc.value, 50), "%s %v", tc.op, tc.value)
	}
}
