// Package horizon resolves time settings into ordered planning periods and
// provides the period key math shared by the grid, evaluator and alerting.
package horizon

import (
	"fmt"
	"time"

	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
)

// PeriodKey returns the canonical key for the period containing date at the
// given granularity. Week keys use the ISO week, attributed to its Monday.
func PeriodKey(date time.Time, g models.Granularity) (string, error) {
	switch g {
	case models.GranularityDay:
		return date.Format("2006-01-02"), nil
	case models.GranularityWeek:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case models.GranularityMonth:
		return date.Format("2006-01"), nil
	case models.GranularityQuarter:
		quarter := (int(date.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", date.Year(), quarter), nil
	case models.GranularityYear:
		return date.Format("2006"), nil
	}
	return "", errors.Newf(errors.CodeInvalidPeriod, "unknown granularity %q", g)
}

// ParsePeriod parses a canonical period key back into its granularity and
// inclusive start date.
func ParsePeriod(key string) (models.Granularity, time.Time, error) {
	if t, err := time.Parse("2006-01-02", key); err == nil {
		return models.GranularityDay, t, nil
	}
	var year, week int
	if n, err := fmt.Sscanf(key, "%4d-W%2d", &year, &week); err == nil && n == 2 && len(key) == 8 {
		if week < 1 || week > 53 {
			return "", time.Time{}, errors.Newf(errors.CodeInvalidPeriod, "invalid week in period %q", key).WithPeriod(key)
		}
		return models.GranularityWeek, isoWeekStart(year, week), nil
	}
	var quarter int
	if n, err := fmt.Sscanf(key, "%4d-Q%1d", &year, &quarter); err == nil && n == 2 && len(key) == 7 {
		if quarter < 1 || quarter > 4 {
			return "", time.Time{}, errors.Newf(errors.CodeInvalidPeriod, "invalid quarter in period %q", key).WithPeriod(key)
		}
		month := time.Month((quarter-1)*3 + 1)
		return models.GranularityQuarter, time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), nil
	}
	if t, err := time.Parse("2006-01", key); err == nil {
		return models.GranularityMonth, t, nil
	}
	if t, err := time.Parse("2006", key); err == nil {
		return models.GranularityYear, t, nil
	}
	return "", time.Time{}, errors.Newf(errors.CodeInvalidPeriod, "unparseable period %q", key).WithPeriod(key)
}

// PeriodRange returns the inclusive start and exclusive end of the period.
func PeriodRange(key string) (time.Time, time.Time, error) {
	g, start, err := ParsePeriod(key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, periodEnd(start, g), nil
}

// Contains reports whether the period identified by inner starts within the
// period identified by outer. Periods are attributed by their start date, so
// a week straddling a month boundary belongs to the month holding its Monday.
func Contains(outer, inner string) (bool, error) {
	outerStart, outerEnd, err := PeriodRange(outer)
	if err != nil {
		return false, err
	}
	_, innerStart, err := ParsePeriod(inner)
	if err != nil {
		return false, err
	}
	return !innerStart.Before(outerStart) && innerStart.Before(outerEnd), nil
}

// Label returns the human readable label for a period.
func Label(key string) (string, error) {
	g, start, err := ParsePeriod(key)
	if err != nil {
		return "", err
	}
	switch g {
	case models.GranularityDay:
		return start.Format("02 Jan 2006"), nil
	case models.GranularityWeek:
		year, week := start.ISOWeek()
		return fmt.Sprintf("W%02d %d", week, year), nil
	case models.GranularityMonth:
		return start.Format("Jan 2006"), nil
	case models.GranularityQuarter:
		quarter := (int(start.Month())-1)/3 + 1
		return fmt.Sprintf("Q%d %d", quarter, start.Year()), nil
	case models.GranularityYear:
		return start.Format("2006"), nil
	}
	return key, nil
}

// Advance moves a date forward by one period of the granularity, preserving
// its offset within the period.
func Advance(date time.Time, g models.Granularity) time.Time {
	return periodEnd(date, g)
}

// FinerThan reports whether a is a strictly finer granularity than b.
func FinerThan(a, b models.Granularity) bool {
	return granularityRank(a) < granularityRank(b)
}

func granularityRank(g models.Granularity) int {
	switch g {
	case models.GranularityDay:
		return 0
	case models.GranularityWeek:
		return 1
	case models.GranularityMonth:
		return 2
	case models.GranularityQuarter:
		return 3
	case models.GranularityYear:
		return 4
	}
	return 5
}

func isoWeekStart(year, week int) time.Time {
	// Jan 4 is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

func periodEnd(start time.Time, g models.Granularity) time.Time {
	switch g {
	case models.GranularityDay:
		return start.AddDate(0, 0, 1)
	case models.GranularityWeek:
		return start.AddDate(0, 0, 7)
	case models.GranularityMonth:
		return start.AddDate(0, 1, 0)
	case models.GranularityQuarter:
		return start.AddDate(0, 3, 0)
	case models.GranularityYear:
		return start.AddDate(1, 0, 0)
	}
	return start
}

func periodStart(date time.Time, g models.Granularity) time.Time {
	switch g {
	case models.GranularityDay:
		return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	case models.GranularityWeek:
		weekday := int(date.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		monday := date.AddDate(0, 0, 1-weekday)
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	case models.GranularityMonth:
		return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.GranularityQuarter:
		month := time.Month(((int(date.Month())-1)/3)*3 + 1)
		return time.Date(date.Year(), month, 1, 0, 0, 0, 0, time.UTC)
	case models.GranularityYear:
		return time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return date
}
