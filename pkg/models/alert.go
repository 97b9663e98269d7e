package models

import (
	"time"
)

// AlertSeverity ranks how urgent an alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType classifies what kind of condition an alert signals.
type AlertType string

const (
	AlertTypeShortage  AlertType = "shortage"
	AlertTypeExcess    AlertType = "excess"
	AlertTypeException AlertType = "exception"
	AlertTypeThreshold AlertType = "threshold"
)

// AlertOperator compares an evaluated value against a rule threshold.
type AlertOperator string

const (
	OperatorGreaterThan      AlertOperator = "gt"
	OperatorGreaterThanEqual AlertOperator = "gte"
	OperatorLessThan         AlertOperator = "lt"
	OperatorLessThanEqual    AlertOperator = "lte"
	OperatorEqual            AlertOperator = "eq"
)

// AlertRule defines a threshold check over a key figure across a horizon.
type AlertRule struct {
	ID            string        `json:"id" db:"id"`
	TenantID      string        `json:"tenant_id" db:"tenant_id"`
	Name          string        `json:"name" db:"name" validate:"required"`
	Description   string        `json:"description,omitempty" db:"description"`
	KeyFigureID   string        `json:"key_figure_id" db:"key_figure_id"`
	TimeSettingID string        `json:"time_setting_id" db:"time_setting_id"`
	Level         Granularity   `json:"level" db:"level"`
	AlertType     AlertType     `json:"alert_type" db:"alert_type"`
	Operator      AlertOperator `json:"operator" db:"operator"`
	Threshold     float64       `json:"threshold" db:"threshold"`
	Severity      AlertSeverity `json:"severity" db:"severity"`
	Enabled       bool          `json:"enabled" db:"enabled"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Alert is a raised rule breach for one version, figure and period.
type Alert struct {
	ID          string        `json:"id" db:"id"`
	TenantID    string        `json:"tenant_id" db:"tenant_id"`
	RuleID      string        `json:"rule_id" db:"rule_id"`
	VersionID   string        `json:"version_id" db:"version_id"`
	KeyFigureID string        `json:"key_figure_id" db:"key_figure_id"`
	TimePeriod  string        `json:"time_period" db:"time_period"`
	PeriodType  Granularity   `json:"period_type" db:"period_type"`
	AlertType   AlertType     `json:"alert_type" db:"alert_type"`
	Severity    AlertSeverity `json:"severity" db:"severity"`
	Message     string        `json:"message" db:"message"`
	ActualValue float64       `json:"actual_value" db:"actual_value"`
	Threshold   float64       `json:"threshold" db:"threshold"`
	Resolved    bool          `json:"resolved" db:"resolved"`
	ResolvedBy  *string       `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateAlertRuleRequest is the request body for creating an alert rule
type CreateAlertRuleRequest struct {
	Name          string        `json:"name" validate:"required"`
	Description   string        `json:"description,omitempty"`
	KeyFigureID   string        `json:"key_figure_id" validate:"required"`
	TimeSettingID string        `json:"time_setting_id" validate:"required"`
	Level         Granularity   `json:"level" validate:"required,oneof=day week month quarter year"`
	AlertType     AlertType     `json:"alert_type" validate:"required,oneof=shortage excess exception threshold"`
	Operator      AlertOperator `json:"operator" validate:"required,oneof=gt gte lt lte eq"`
	Threshold     float64       `json:"threshold"`
	Severity      AlertSeverity `json:"severity" validate:"required,oneof=info warning error critical"`
	Enabled       *bool         `json:"enabled,omitempty"`
}

// UpdateAlertRuleRequest is the request body for updating an alert rule
type UpdateAlertRuleRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Level       *Granularity   `json:"level,omitempty" validate:"omitempty,oneof=day week month quarter year"`
	AlertType   *AlertType     `json:"alert_type,omitempty" validate:"omitempty,oneof=shortage excess exception threshold"`
	Operator    *AlertOperator `json:"operator,omitempty" validate:"omitempty,oneof=gt gte lt lte eq"`
	Threshold   *float64       `json:"threshold,omitempty"`
	Severity    *AlertSeverity `json:"severity,omitempty" validate:"omitempty,oneof=info warning error critical"`
	Enabled     *bool          `json:"enabled,omitempty"`
}

// EvaluateAlertsRequest triggers alert evaluation for one version
type EvaluateAlertsRequest struct {
	VersionID string `json:"version_id" validate:"required"`
}

// EvaluateAlertsResponse reports the outcome of an alert evaluation run
type EvaluateAlertsResponse struct {
	Evaluated int     `json:"evaluated"`
	Raised    int     `json:"raised"`
	Refreshed int     `json:"refreshed"`
	Alerts    []Alert `json:"alerts"`
}

// AlertRuleListResponse is the API response for listing alert rules
type AlertRuleListResponse struct {
	Items      []AlertRule `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}

// AlertListResponse is the API response for listing alerts
type AlertListResponse struct {
	Items      []Alert `json:"items"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
}
