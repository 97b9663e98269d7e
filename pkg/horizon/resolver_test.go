package horizon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedSetting(start, end time.Time) *models.TimeSetting {
	return &models.TimeSetting{
		Name:        "test",
		HorizonType: models.HorizonFixed,
		StartDate:   &start,
		EndDate:     &end,
		BaseLevel:   models.GranularityMonth,
		Hierarchy: models.TimeHierarchy{
			Day:     true,
			Week:    true,
			Month:   true,
			Quarter: true,
			Year:    true,
		},
	}
}

func TestResolveFixedMonths(t *testing.T) {
	resolver := NewResolver(nil)
	setting := fixedSetting(date(2024, time.January, 1), date(2024, time.March, 31))

	periods, err := resolver.Resolve(setting, models.GranularityMonth)
	require.NoError(t, err)
	require.Len(t, periods, 3)

	assert.Equal(t, "2024-01", periods[0].Key)
	assert.Equal(t, "2024-02", periods[1].Key)
	assert.Equal(t, "2024-03", periods[2].Key)
	assert.Equal(t, "Jan 2024", periods[0].Label)
	assert.Equal(t, date(2024, time.January, 1), periods[0].StartDate)
	assert.Equal(t, date(2024, time.January, 31), periods[0].EndDate)
}

func TestResolveFixedQuartersAndYears(t *testing.T) {
	resolver := NewResolver(nil)
	setting := fixedSetting(date(2024, time.January, 1), date(2024, time.December, 31))

	quarters, err := resolver.Resolve(setting, models.GranularityQuarter)
	require.NoError(t, err)
	require.Len(t, quarters, 4)
	assert.Equal(t, "2024-Q1", quarters[0].Key)
	assert.Equal(t, "2024-Q4", quarters[3].Key)

	years, err := resolver.Resolve(setting, models.GranularityYear)
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.Equal(t, "2024", years[0].Key)
}

func TestResolveClampsPartialBuckets(t *testing.T) {
	resolver := NewResolver(nil)
	// Mid-month start and end still produce whole month buckets.
	setting := fixedSetting(date(2024, time.January, 15), date(2024, time.February, 10))

	periods, err := resolver.Resolve(setting, models.GranularityMonth)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "2024-01", periods[0].Key)
	assert.Equal(t, "2024-02", periods[1].Key)
}

func TestResolveWeeksUseISOKeys(t *testing.T) {
	resolver := NewResolver(nil)
	setting := fixedSetting(date(2024, time.January, 29), date(2024, time.February, 11))

	periods, err := resolver.Resolve(setting, models.GranularityWeek)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "2024-W05", periods[0].Key)
	assert.Equal(t, "2024-W06", periods[1].Key)
	// Week buckets start on Monday.
	assert.Equal(t, time.Monday, periods[0].StartDate.Weekday())
}

func TestResolveRollingAnchoredOnNow(t *testing.T) {
	now := func() time.Time { return date(2024, time.June, 15) }
	resolver := NewResolver(now)
	setting := &models.TimeSetting{
		Name:           "rolling",
		HorizonType:    models.HorizonRolling,
		RollingPeriods: 6,
		RollingUnit:    models.GranularityMonth,
		BaseLevel:      models.GranularityMonth,
		Hierarchy:      models.TimeHierarchy{Month: true},
	}

	periods, err := resolver.Resolve(setting, models.GranularityMonth)
	require.NoError(t, err)
	// Exactly six months, the current one first.
	require.Len(t, periods, 6)
	assert.Equal(t, "2024-06", periods[0].Key)
	assert.Equal(t, "2024-11", periods[5].Key)
}

func TestResolveRollingWindowFixedByUnit(t *testing.T) {
	now := func() time.Time { return date(2024, time.June, 15) }
	resolver := NewResolver(now)
	setting := &models.TimeSetting{
		Name:           "rolling",
		HorizonType:    models.HorizonRolling,
		RollingPeriods: 2,
		RollingUnit:    models.GranularityMonth,
		BaseLevel:      models.GranularityMonth,
		Hierarchy:      models.TimeHierarchy{Week: true, Month: true},
	}

	months, err := resolver.Resolve(setting, models.GranularityMonth)
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, "2024-06", months[0].Key)
	assert.Equal(t, "2024-07", months[1].Key)

	// Resolving at week covers the same two-month window, the first and last
	// buckets clamped to week boundaries.
	weeks, err := resolver.Resolve(setting, models.GranularityWeek)
	require.NoError(t, err)
	require.Len(t, weeks, 10)
	assert.Equal(t, "2024-W22", weeks[0].Key)
	assert.Equal(t, "2024-W31", weeks[9].Key)
}

func TestResolveRollingRequiresWindowParameters(t *testing.T) {
	resolver := NewResolver(nil)
	setting := &models.TimeSetting{
		Name:        "rolling",
		HorizonType: models.HorizonRolling,
		BaseLevel:   models.GranularityMonth,
		Hierarchy:   models.TimeHierarchy{Month: true},
	}

	_, err := resolver.Resolve(setting, models.GranularityMonth)
	require.Error(t, err)

	var planningErr *errors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, errors.CodeInvalidPeriod, planningErr.Code)
}

func TestResolveIsDeterministic(t *testing.T) {
	now := func() time.Time { return date(2024, time.June, 15) }
	resolver := NewResolver(now)
	setting := &models.TimeSetting{
		Name:           "rolling",
		HorizonType:    models.HorizonRolling,
		RollingPeriods: 3,
		RollingUnit:    models.GranularityWeek,
		BaseLevel:      models.GranularityWeek,
		Hierarchy:      models.TimeHierarchy{Week: true},
	}

	first, err := resolver.Resolve(setting, models.GranularityWeek)
	require.NoError(t, err)
	require.Len(t, first, 3)
	second, err := resolver.Resolve(setting, models.GranularityWeek)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveDisabledLevel(t *testing.T) {
	resolver := NewResolver(nil)
	setting := fixedSetting(date(2024, time.January, 1), date(2024, time.March, 31))
	setting.Hierarchy.Day = false

	_, err := resolver.Resolve(setting, models.GranularityDay)
	require.Error(t, err)

	var planningErr *errors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, errors.CodeInvalidHierarchyLevel, planningErr.Code)
}

func TestResolveFixedRequiresDates(t *testing.T) {
	resolver := NewResolver(nil)
	setting := fixedSetting(date(2024, time.January, 1), date(2024, time.March, 31))
	setting.EndDate = nil

	_, err := resolver.Resolve(setting, models.GranularityMonth)
	require.Error(t, err)
}
