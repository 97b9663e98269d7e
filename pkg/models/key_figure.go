package models

import (
	"time"
)

// KeyFigureType distinguishes stored values from formula-derived ones.
type KeyFigureType string

const (
	KeyFigureBase       KeyFigureType = "base"
	KeyFigureCalculated KeyFigureType = "calculated"
)

// Aggregation controls how finer-grained values roll up to coarser periods.
type Aggregation string

const (
	AggregationSum   Aggregation = "sum"
	AggregationAvg   Aggregation = "avg"
	AggregationMin   Aggregation = "min"
	AggregationMax   Aggregation = "max"
	AggregationCount Aggregation = "count"
)

// KeyFigure is a planning measure, either entered directly or calculated
// from other key figures via its formula.
type KeyFigure struct {
	ID          string        `json:"id" db:"id"`
	TenantID    string        `json:"tenant_id" db:"tenant_id"`
	Code        string        `json:"code" db:"code" validate:"required"`
	Name        string        `json:"name" db:"name" validate:"required"`
	Description string        `json:"description,omitempty" db:"description"`
	Type        KeyFigureType `json:"type" db:"type"`
	Unit        string        `json:"unit,omitempty" db:"unit"`
	Aggregation Aggregation   `json:"aggregation" db:"aggregation"`
	// Formula is empty for base figures. References other figures by code.
	Formula   string     `json:"formula,omitempty" db:"formula"`
	Editable  bool       `json:"editable" db:"editable"`
	SortOrder int        `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsCalculated returns true when the figure's values come from its formula.
func (k *KeyFigure) IsCalculated() bool {
	return k.Type == KeyFigureCalculated
}

// CreateKeyFigureRequest is the request body for creating a key figure
type CreateKeyFigureRequest struct {
	Code        string        `json:"code" validate:"required"`
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description,omitempty"`
	Type        KeyFigureType `json:"type" validate:"required,oneof=base calculated"`
	Unit        string        `json:"unit,omitempty"`
	Aggregation Aggregation   `json:"aggregation" validate:"omitempty,oneof=sum avg min max count"`
	Formula     string        `json:"formula,omitempty"`
	Editable    *bool         `json:"editable,omitempty"`
	SortOrder   int           `json:"sort_order"`
}

// UpdateKeyFigureRequest is the request body for updating a key figure
type UpdateKeyFigureRequest struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Unit        *string      `json:"unit,omitempty"`
	Aggregation *Aggregation `json:"aggregation,omitempty" validate:"omitempty,oneof=sum avg min max count"`
	Formula     *string      `json:"formula,omitempty"`
	Editable    *bool        `json:"editable,omitempty"`
	SortOrder   *int         `json:"sort_order,omitempty"`
}

// KeyFigureListResponse is the API response for listing key figures
type KeyFigureListResponse struct {
	Items      []KeyFigure `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}

// ValidateFormulaRequest is the request body for validating a formula without saving it
type ValidateFormulaRequest struct {
	Code    string `json:"code" validate:"required"`
	Formula string `json:"formula" validate:"required"`
}

// ValidateFormulaResponse reports whether a formula parses and resolves cleanly
type ValidateFormulaResponse struct {
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// KeyFigureDependenciesResponse lists the codes a calculated figure depends on,
// directly and transitively
type KeyFigureDependenciesResponse struct {
	Code       string   `json:"code"`
	Direct     []string `json:"direct"`
	Transitive []string `json:"transitive"`
}
