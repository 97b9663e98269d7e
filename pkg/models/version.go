package models

import (
	"time"
)

// VersionStatus is the lifecycle state of a planning version.
type VersionStatus string

const (
	VersionDraft    VersionStatus = "draft"
	VersionActive   VersionStatus = "active"
	VersionLocked   VersionStatus = "locked"
	VersionArchived VersionStatus = "archived"
)

// PlanningVersion is an isolated scenario of planning data.
type PlanningVersion struct {
	ID          string        `json:"id" db:"id"`
	TenantID    string        `json:"tenant_id" db:"tenant_id"`
	Name        string        `json:"name" db:"name" validate:"required"`
	Description string        `json:"description,omitempty" db:"description"`
	Status      VersionStatus `json:"status" db:"status"`
	// CopiedFrom points at the source version when this one was created by copy.
	CopiedFrom *string    `json:"copied_from,omitempty" db:"copied_from"`
	LockedAt   *time.Time `json:"locked_at,omitempty" db:"locked_at"`
	LockedBy   *string    `json:"locked_by,omitempty" db:"locked_by"`
	CreatedBy  string     `json:"created_by" db:"created_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// IsWritable reports whether planning data may be written under this status.
func (s VersionStatus) IsWritable() bool {
	return s == VersionDraft || s == VersionActive
}

// IsWritable returns true when planning data may be written to the version.
func (v *PlanningVersion) IsWritable() bool {
	return v.Status.IsWritable()
}

// CreateVersionRequest is the request body for creating a planning version
type CreateVersionRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

// UpdateVersionRequest is the request body for updating a planning version.
// A status change runs through the lifecycle state machine.
type UpdateVersionRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *VersionStatus `json:"status,omitempty" validate:"omitempty,oneof=draft active locked archived"`
}

// CopyVersionRequest is the request body for copying a version and its data
type CopyVersionRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

// TransitionVersionRequest is the request body for a status transition
type TransitionVersionRequest struct {
	Status VersionStatus `json:"status" validate:"required,oneof=draft active locked archived"`
}

// VersionListResponse is the API response for listing versions
type VersionListResponse struct {
	Items      []PlanningVersion `json:"items"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}
