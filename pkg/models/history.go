package models

import (
	"time"
)

// HistoryAction identifies what kind of change a history entry records.
type HistoryAction string

const (
	HistoryCellUpdate        HistoryAction = "cell_update"
	HistoryCellDelete        HistoryAction = "cell_delete"
	HistoryVersionCreated    HistoryAction = "version_created"
	HistoryVersionCopied     HistoryAction = "version_copied"
	HistoryVersionTransition HistoryAction = "version_transition"
	HistoryVersionDeleted    HistoryAction = "version_deleted"
	HistoryAlertResolved     HistoryAction = "alert_resolved"
)

// HistoryEntry is one append-only audit record.
type HistoryEntry struct {
	ID          int64         `json:"id" db:"id"`
	TenantID    string        `json:"tenant_id" db:"tenant_id"`
	VersionID   string        `json:"version_id" db:"version_id"`
	Action      HistoryAction `json:"action" db:"action"`
	KeyFigureID *string       `json:"key_figure_id,omitempty" db:"key_figure_id"`
	TimePeriod  *string       `json:"time_period,omitempty" db:"time_period"`
	OldValue    *float64      `json:"old_value,omitempty" db:"old_value"`
	NewValue    *float64      `json:"new_value,omitempty" db:"new_value"`
	Detail      string        `json:"detail,omitempty" db:"detail"`
	ChangedBy   string        `json:"changed_by" db:"changed_by"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// HistoryQuery filters the audit log
type HistoryQuery struct {
	VersionID string `json:"version_id" query:"version_id"`
	Action    string `json:"action,omitempty" query:"action"`
	Page      int    `json:"page" query:"page"`
	PageSize  int    `json:"page_size" query:"page_size"`
}

// HistoryListResponse is the API response for listing history entries
type HistoryListResponse struct {
	Items      []HistoryEntry `json:"items"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
