package models

import (
	"time"
)

// PlanningData is one stored cell value for a base key figure in a version.
type PlanningData struct {
	ID          string      `json:"id" db:"id"`
	TenantID    string      `json:"tenant_id" db:"tenant_id"`
	VersionID   string      `json:"version_id" db:"version_id"`
	KeyFigureID string      `json:"key_figure_id" db:"key_figure_id"`
	TimePeriod  string      `json:"time_period" db:"time_period"`
	PeriodType  Granularity `json:"period_type" db:"period_type"`
	Value       float64     `json:"value" db:"value"`
	Notes       *string     `json:"notes,omitempty" db:"notes"`
	UpdatedBy   string      `json:"updated_by" db:"updated_by"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// CellUpdate is one cell write within a bulk update.
type CellUpdate struct {
	KeyFigureID string      `json:"key_figure_id" validate:"required"`
	TimePeriod  string      `json:"time_period" validate:"required"`
	PeriodType  Granularity `json:"period_type" validate:"required,oneof=day week month quarter year"`
	Value       float64     `json:"value"`
	Notes       *string     `json:"notes,omitempty"`
}

// BulkUpdateRequest writes a batch of cells to one version atomically.
type BulkUpdateRequest struct {
	VersionID string       `json:"version_id" validate:"required"`
	Cells     []CellUpdate `json:"cells" validate:"required,min=1,dive"`
}

// BulkUpdateResponse reports the outcome of a bulk cell write
type BulkUpdateResponse struct {
	Updated int `json:"updated"`
	Created int `json:"created"`
}

// PlanningDataQuery filters stored planning data
type PlanningDataQuery struct {
	VersionID    string      `json:"version_id" query:"version_id" validate:"required"`
	KeyFigureIDs []string    `json:"key_figure_ids,omitempty" query:"key_figure_ids"`
	PeriodType   Granularity `json:"period_type,omitempty" query:"period_type"`
	FromPeriod   string      `json:"from_period,omitempty" query:"from_period"`
	ToPeriod     string      `json:"to_period,omitempty" query:"to_period"`
	Page         int         `json:"page" query:"page"`
	PageSize     int         `json:"page_size" query:"page_size"`
}

// PlanningDataListResponse is the API response for listing planning data
type PlanningDataListResponse struct {
	Items      []PlanningData `json:"items"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
