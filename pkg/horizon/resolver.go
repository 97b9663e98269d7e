package horizon

import (
	"time"

	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
)

// Resolver turns a time setting into the ordered periods of its horizon.
// The clock is injected so rolling horizons are deterministic under test.
type Resolver struct {
	now func() time.Time
}

func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

// Resolve enumerates the horizon of the time setting at the requested level.
// Periods are ordered ascending and cover the full horizon, with the first
// and last buckets clamped to period boundaries.
func (r *Resolver) Resolve(setting *models.TimeSetting, level models.Granularity) ([]models.Period, error) {
	if !setting.Hierarchy.Enabled(level) {
		return nil, errors.Newf(errors.CodeInvalidHierarchyLevel, "level %q is not enabled for time setting %q", level, setting.Name)
	}

	start, end, err := r.horizonBounds(setting, level)
	if err != nil {
		return nil, err
	}

	periods := []models.Period{}
	for cursor := periodStart(start, level); cursor.Before(end); cursor = periodEnd(cursor, level) {
		key, err := PeriodKey(cursor, level)
		if err != nil {
			return nil, err
		}
		label, err := Label(key)
		if err != nil {
			return nil, err
		}
		periods = append(periods, models.Period{
			Key:       key,
			Label:     label,
			Type:      level,
			StartDate: cursor,
			EndDate:   periodEnd(cursor, level).AddDate(0, 0, -1),
		})
	}
	return periods, nil
}

// horizonBounds returns the inclusive start and exclusive end dates of the
// setting's horizon. A rolling window spans rolling_periods consecutive units
// of rolling_unit starting at the period containing the current time, so the
// absolute span is fixed by the setting and the requested level only
// enumerates inside it.
func (r *Resolver) horizonBounds(setting *models.TimeSetting, level models.Granularity) (time.Time, time.Time, error) {
	switch setting.HorizonType {
	case models.HorizonFixed:
		if setting.StartDate == nil || setting.EndDate == nil {
			return time.Time{}, time.Time{}, errors.New(errors.CodeInvalidPeriod, "fixed horizon requires start and end dates")
		}
		if setting.EndDate.Before(*setting.StartDate) {
			return time.Time{}, time.Time{}, errors.New(errors.CodeInvalidPeriod, "horizon end date precedes start date")
		}
		return periodStart(setting.StartDate.UTC(), level), setting.EndDate.UTC().AddDate(0, 0, 1), nil
	case models.HorizonRolling:
		if setting.RollingPeriods <= 0 || setting.RollingUnit == "" {
			return time.Time{}, time.Time{}, errors.New(errors.CodeInvalidPeriod, "rolling horizon requires rolling_periods and rolling_unit")
		}
		start := periodStart(r.now().UTC(), setting.RollingUnit)
		end := start
		for i := 0; i < setting.RollingPeriods; i++ {
			end = periodEnd(end, setting.RollingUnit)
		}
		return start, end, nil
	}
	return time.Time{}, time.Time{}, errors.Newf(errors.CodeInvalidPeriod, "unknown horizon type %q", setting.HorizonType)
}
