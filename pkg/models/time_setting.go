package models

import (
	"time"
)

// Granularity is a level of the planning time hierarchy.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// HorizonType controls how a time setting resolves its date range.
type HorizonType string

const (
	HorizonFixed   HorizonType = "fixed"
	HorizonRolling HorizonType = "rolling"
)

// TimeHierarchy flags which granularities a time setting exposes.
type TimeHierarchy struct {
	Day     bool `json:"day"`
	Week    bool `json:"week"`
	Month   bool `json:"month"`
	Quarter bool `json:"quarter"`
	Year    bool `json:"year"`
}

// Enabled reports whether the given granularity is part of the hierarchy.
func (h TimeHierarchy) Enabled(g Granularity) bool {
	switch g {
	case GranularityDay:
		return h.Day
	case GranularityWeek:
		return h.Week
	case GranularityMonth:
		return h.Month
	case GranularityQuarter:
		return h.Quarter
	case GranularityYear:
		return h.Year
	}
	return false
}

// EnabledLevels returns the enabled granularities ordered finest to coarsest.
func (h TimeHierarchy) EnabledLevels() []Granularity {
	levels := make([]Granularity, 0, 5)
	for _, g := range []Granularity{GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear} {
		if h.Enabled(g) {
			levels = append(levels, g)
		}
	}
	return levels
}

// TimeSetting defines the planning horizon and time hierarchy for a book.
// A rolling horizon spans RollingPeriods consecutive units of RollingUnit
// anchored at the current period, so its absolute span does not depend on
// the level it is resolved at.
type TimeSetting struct {
	ID             string        `json:"id" db:"id"`
	TenantID       string        `json:"tenant_id" db:"tenant_id"`
	Name           string        `json:"name" db:"name" validate:"required"`
	Description    string        `json:"description,omitempty" db:"description"`
	HorizonType    HorizonType   `json:"horizon_type" db:"horizon_type"`
	StartDate      *time.Time    `json:"start_date,omitempty" db:"start_date"`
	EndDate        *time.Time    `json:"end_date,omitempty" db:"end_date"`
	RollingPeriods int           `json:"rolling_periods" db:"rolling_periods"`
	RollingUnit    Granularity   `json:"rolling_unit,omitempty" db:"rolling_unit"`
	BaseLevel      Granularity   `json:"base_level" db:"base_level"`
	Hierarchy      TimeHierarchy `json:"hierarchy" db:"-"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Period is a single bucket within a resolved planning horizon.
type Period struct {
	Key       string      `json:"key"`
	Label     string      `json:"label"`
	Type      Granularity `json:"type"`
	StartDate time.Time   `json:"start_date"`
	EndDate   time.Time   `json:"end_date"`
}

// CreateTimeSettingRequest is the request body for creating a time setting
type CreateTimeSettingRequest struct {
	Name           string        `json:"name" validate:"required"`
	Description    string        `json:"description,omitempty"`
	HorizonType    HorizonType   `json:"horizon_type" validate:"required,oneof=fixed rolling"`
	StartDate      *time.Time    `json:"start_date,omitempty"`
	EndDate        *time.Time    `json:"end_date,omitempty"`
	RollingPeriods int           `json:"rolling_periods" validate:"gte=0"`
	RollingUnit    Granularity   `json:"rolling_unit,omitempty" validate:"omitempty,oneof=day week month quarter year"`
	BaseLevel      Granularity   `json:"base_level" validate:"required,oneof=day week month quarter year"`
	Hierarchy      TimeHierarchy `json:"hierarchy"`
}

// UpdateTimeSettingRequest is the request body for updating a time setting
type UpdateTimeSettingRequest struct {
	Name           *string        `json:"name,omitempty"`
	Description    *string        `json:"description,omitempty"`
	HorizonType    *HorizonType   `json:"horizon_type,omitempty" validate:"omitempty,oneof=fixed rolling"`
	StartDate      *time.Time     `json:"start_date,omitempty"`
	EndDate        *time.Time     `json:"end_date,omitempty"`
	RollingPeriods *int           `json:"rolling_periods,omitempty" validate:"omitempty,gt=0"`
	RollingUnit    *Granularity   `json:"rolling_unit,omitempty" validate:"omitempty,oneof=day week month quarter year"`
	BaseLevel      *Granularity   `json:"base_level,omitempty" validate:"omitempty,oneof=day week month quarter year"`
	Hierarchy      *TimeHierarchy `json:"hierarchy,omitempty"`
}

// TimeSettingListResponse is the API response for listing time settings
type TimeSettingListResponse struct {
	Items      []TimeSetting `json:"items"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// PeriodListResponse is the API response for resolving a time setting's periods
type PeriodListResponse struct {
	TimeSettingID string      `json:"time_setting_id"`
	Level         Granularity `json:"level"`
	Periods       []Period    `json:"periods"`
}
