// Package errors defines the typed error taxonomy for planning operations.
package errors

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

const (
	CodeInvalidHierarchyLevel   = "invalid_hierarchy_level"
	CodeInvalidPeriod           = "invalid_period"
	CodeCyclicFormula           = "cyclic_formula"
	CodeUnknownFormulaReference = "unknown_formula_reference"
	CodeInvalidFormula          = "invalid_formula"
	CodeDuplicateKeyFigureCode  = "duplicate_key_figure_code"
	CodeReadOnlyKeyFigure       = "read_only_key_figure"
	CodeVersionLocked           = "version_locked"
	CodeVersionBusy             = "version_busy"
	CodeVersionNotArchived      = "version_not_archived"
	CodeInvalidTransition       = "invalid_transition"
	CodeNoDataForPeriod         = "no_data_for_period"
	CodeNotFound                = "not_found"
)

// PlanningError carries a machine readable code plus the planning coordinates
// the failure relates to.
type PlanningError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	VersionID     string `json:"versionId,omitempty"`
	KeyFigureCode string `json:"keyFigureCode,omitempty"`
	Period        string `json:"period,omitempty"`
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code, message string) *PlanningError {
	return &PlanningError{Code: code, Message: message}
}

func Newf(code, format string, args ...any) *PlanningError {
	return &PlanningError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *PlanningError) WithVersion(versionID string) *PlanningError {
	e.VersionID = versionID
	return e
}

func (e *PlanningError) WithKeyFigure(code string) *PlanningError {
	e.KeyFigureCode = code
	return e
}

func (e *PlanningError) WithPeriod(period string) *PlanningError {
	e.Period = period
	return e
}

// HTTPStatus maps an error code to the status returned to callers. Conflicts
// with version state or concurrent writers are 409, bad definitions are 400.
func (e *PlanningError) HTTPStatus() int {
	switch e.Code {
	case CodeVersionLocked, CodeVersionBusy, CodeVersionNotArchived, CodeInvalidTransition:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// ToHTTPError converts the planning error to the transport error type.
func (e *PlanningError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.HTTPStatus(), e.Error())
}
