package horizon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/models"
)

func TestPeriodKeyFormats(t *testing.T) {
	d := time.Date(2024, time.February, 3, 0, 0, 0, 0, time.UTC)

	key, err := PeriodKey(d, models.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-03", key)

	key, err = PeriodKey(d, models.GranularityWeek)
	require.NoError(t, err)
	assert.Equal(t, "2024-W05", key)

	key, err = PeriodKey(d, models.GranularityMonth)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", key)

	key, err = PeriodKey(d, models.GranularityQuarter)
	require.NoError(t, err)
	assert.Equal(t, "2024-Q1", key)

	key, err = PeriodKey(d, models.GranularityYear)
	require.NoError(t, err)
	assert.Equal(t, "2024", key)
}

func TestParsePeriodRoundTrip(t *testing.T) {
	for _, key := range []string{"2024-02-03", "2024-W05", "2024-02", "2024-Q3", "2024"} {
		g, start, err := ParsePeriod(key)
		require.NoError(t, err, key)

		roundTrip, err := PeriodKey(start, g)
		require.NoError(t, err, key)
		assert.Equal(t, key, roundTrip)
	}
}

func TestParsePeriodRejectsGarbage(t *testing.T) {
	for _, key := range []string{"", "garbage", "2024-W99", "2024-Q7", "2024-13-40"} {
		_, _, err := ParsePeriod(key)
		assert.Error(t, err, key)
	}
}

func TestISOWeekYearBoundary(t *testing.T) {
	// Dec 30 2024 is a Monday in ISO week 1 of 2025.
	key, err := PeriodKey(time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC), models.GranularityWeek)
	require.NoError(t, err)
	assert.Equal(t, "2025-W01", key)

	g, start, err := ParsePeriod("2025-W01")
	require.NoError(t, err)
	assert.Equal(t, models.GranularityWeek, g)
	assert.Equal(t, time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC), start)
}

func TestContainsAttributesByStartDate(t *testing.T) {
	// Week 5 of 2024 starts Jan 29, so it belongs to January.
	ok, err := Contains("2024-01", "2024-W05")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Contains("2024-02", "2024-W05")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Contains("2024-Q1", "2024-03")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Contains("2024", "2024-Q4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdvance(t *testing.T) {
	d := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC), Advance(d, models.GranularityDay))
	assert.Equal(t, time.Date(2024, time.January, 22, 0, 0, 0, 0, time.UTC), Advance(d, models.GranularityWeek))
	assert.Equal(t, time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC), Advance(d, models.GranularityMonth))
	assert.Equal(t, time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC), Advance(d, models.GranularityQuarter))
	assert.Equal(t, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), Advance(d, models.GranularityYear))
}

func TestFinerThan(t *testing.T) {
	assert.True(t, FinerThan(models.GranularityDay, models.GranularityWeek))
	assert.True(t, FinerThan(models.GranularityWeek, models.GranularityMonth))
	assert.True(t, FinerThan(models.GranularityMonth, models.GranularityYear))
	assert.False(t, FinerThan(models.GranularityYear, models.GranularityMonth))
	assert.False(t, FinerThan(models.GranularityMonth, models.GranularityMonth))
}
