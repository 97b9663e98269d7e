package version

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	planningerrors "github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// VersionRepository defines the interface for planning version operations
type VersionRepository interface {
	Create(ctx context.Context, tenantID, userID string, req models.CreateVersionRequest) (*models.PlanningVersion, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.PlanningVersion, error)
	List(ctx context.Context, tenantID string, status models.VersionStatus, page, pageSize int) ([]models.PlanningVersion, int, error)
	Update(ctx context.Context, tenantID string, id string, req models.UpdateVersionRequest) (*models.PlanningVersion, error)
	Transition(ctx context.Context, tenantID, userID, id string, from, to models.VersionStatus) (*models.PlanningVersion, error)
	Copy(ctx context.Context, tenantID, userID, sourceID string, req models.CopyVersionRequest) (*models.PlanningVersion, error)
	Delete(ctx context.Context, tenantID, userID string, id string) error
}

// Repository implements VersionRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new version repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "planning_versions"

var columns = []string{"id", "tenant_id", "name", "description", "status", "copied_from", "locked_at", "locked_by", "created_by", "created_at", "updated_at"}

// Create creates a new draft version
func (r *Repository) Create(ctx context.Context, tenantID, userID string, req models.CreateVersionRequest) (*models.PlanningVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "name", "description", "status", "created_by", "created_at", "updated_at")
	sb.Values(id, tenantID, req.Name, req.Description, models.VersionDraft, userID, now, now)

	query, args := sb.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
			"name":      req.Name,
		}).Error("failed to create version")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create version: %s", err.Error())
	}

	if err := r.insertHistory(ctx, tx, tenantID, id, models.HistoryVersionCreated, userID, fmt.Sprintf("created version %q", req.Name)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit version create")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"name":      req.Name,
	}).Info("created version")

	return r.GetByID(ctx, tenantID, id)
}

// GetByID gets a version by ID
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.PlanningVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	var v models.PlanningVersion
	err := r.db.GetContext(ctx, &v, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get version by ID")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get version: %v", err)
	}

	return &v, nil
}

// List lists versions for a tenant with an optional status filter
func (r *Repository) List(ctx context.Context, tenantID string, status models.VersionStatus, page, pageSize int) ([]models.PlanningVersion, int, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	applyFilters := func(sb *sqlbuilder.SelectBuilder) {
		conditions := []string{sb.Equal("tenant_id", tenantID)}
		if status != "" {
			conditions = append(conditions, sb.Equal("status", status))
		}
		sb.Where(conditions...)
	}

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From(tableName)
	applyFilters(countSb)
	countQuery, countArgs := countSb.Build()

	var totalCount int
	err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count versions")
		return nil, 0, fmt.Errorf("failed to count versions: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	applyFilters(sb)
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var items []models.PlanningVersion
	err = r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"page":      page,
			"page_size": pageSize,
		}).Error("failed to list versions")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list versions: %v", err)
	}

	return items, totalCount, nil
}

// Update updates a version's name and description
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req models.UpdateVersionRequest) (*models.PlanningVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.Update")
	defer span.End()

	existing, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("updated_at", time.Now()))

	if req.Name != nil {
		sb.Set(sb.Assign("name", *req.Name))
	}
	if req.Description != nil {
		sb.Set(sb.Assign("description", *req.Description))
	}

	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to update version")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update version: %v", err)
	}

	return r.GetByID(ctx, tenantID, id)
}

// Transition moves a version between statuses. The row is locked and the
// expected current status re-checked inside the transaction so concurrent
// transitions cannot race past the state machine. Entering locked stamps
// locked_at/locked_by; leaving it clears them.
func (r *Repository) Transition(ctx context.Context, tenantID, userID, id string, from, to models.VersionStatus) (*models.PlanningVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.Transition")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	current, err := r.lockVersion(ctx, tx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	if current.Status != from {
		return nil, planningerrors.Newf(planningerrors.CodeInvalidTransition, "version is %s, expected %s", current.Status, from).WithVersion(id)
	}

	now := time.Now()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("status", to),
		sb.Assign("updated_at", now),
	)
	if to == models.VersionLocked {
		sb.SetMore(
			sb.Assign("locked_at", now),
			sb.Assign("locked_by", userID),
		)
	} else if from == models.VersionLocked {
		sb.SetMore("locked_at = NULL", "locked_by = NULL")
	}
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
			"to":        to,
		}).Error("failed to transition version")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to transition version: %v", err)
	}

	if err := r.insertHistory(ctx, tx, tenantID, id, models.HistoryVersionTransition, userID, fmt.Sprintf("status %s -> %s", from, to)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit version transition")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"from":      from,
		"to":        to,
	}).Info("transitioned version")

	return r.GetByID(ctx, tenantID, id)
}

// Copy creates a new draft version and copies every planning data row of
// the source into it, all in one transaction. A copy observes either all of
// a concurrent bulk write or none of it. Cell-level history and alerts are
// not carried over; the copy starts clean with one copy history entry.
func (r *Repository) Copy(ctx context.Context, tenantID, userID, sourceID string, req models.CopyVersionRequest) (*models.PlanningVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.Copy")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	source, err := r.lockVersion(ctx, tx, tenantID, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, nil
	}

	now := time.Now()
	id := uuid.New().String()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "name", "description", "status", "copied_from", "created_by", "created_at", "updated_at")
	sb.Values(id, tenantID, req.Name, req.Description, models.VersionDraft, sourceID, userID, now, now)

	query, args := sb.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_id": sourceID,
			"tenant_id": tenantID,
		}).Error("failed to insert copied version")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to copy version: %s", err.Error())
	}

	copyQuery := `
		INSERT INTO planning_data (id, tenant_id, version_id, key_figure_id, time_period, period_type, value, notes, updated_by, created_at, updated_at)
		SELECT gen_random_uuid(), tenant_id, $1, key_figure_id, time_period, period_type, value, notes, $2, $3, $3
		FROM planning_data
		WHERE tenant_id = $4 AND version_id = $5`

	result, err := tx.ExecContext(ctx, copyQuery, id, userID, now, tenantID, sourceID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_id": sourceID,
			"new_id":    id,
			"tenant_id": tenantID,
		}).Error("failed to copy planning data")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to copy planning data: %s", err.Error())
	}
	copied, _ := result.RowsAffected()

	if err := r.insertHistory(ctx, tx, tenantID, id, models.HistoryVersionCopied, userID, fmt.Sprintf("copied from version %s (%d cells)", sourceID, copied)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit version copy")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"source_id": sourceID,
		"new_id":    id,
		"tenant_id": tenantID,
		"cells":     copied,
	}).Info("copied version")

	return r.GetByID(ctx, tenantID, id)
}

// Delete hard deletes an archived version along with its planning data and
// alerts. History entries survive so the audit trail outlives the version.
func (r *Repository) Delete(ctx context.Context, tenantID, userID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.Delete")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	current, err := r.lockVersion(ctx, tx, tenantID, id)
	if err != nil {
		return err
	}
	if current == nil {
		return planningerrors.New(planningerrors.CodeNotFound, "version not found").WithVersion(id)
	}
	if current.Status != models.VersionArchived {
		return planningerrors.Newf(planningerrors.CodeVersionNotArchived, "only archived versions may be deleted, version is %s", current.Status).WithVersion(id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM planning_data WHERE tenant_id = $1 AND version_id = $2", tenantID, id); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("failed to delete planning data for version")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete planning data: %s", err.Error())
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM alerts WHERE tenant_id = $1 AND version_id = $2", tenantID, id); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("failed to delete alerts for version")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete alerts: %s", err.Error())
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM planning_versions WHERE tenant_id = $1 AND id = $2", tenantID, id); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("failed to delete version")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete version: %s", err.Error())
	}

	if err := r.insertHistory(ctx, tx, tenantID, id, models.HistoryVersionDeleted, userID, fmt.Sprintf("deleted archived version %q", current.Name)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit version delete")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Info("deleted version")

	return nil
}

// lockVersion selects the version row FOR UPDATE within the current tx.
func (r *Repository) lockVersion(ctx context.Context, tx database.Tx, tenantID, id string) (*models.PlanningVersion, error) {
	query := `
		SELECT id, tenant_id, name, description, status, copied_from, locked_at, locked_by, created_by, created_at, updated_at
		FROM planning_versions
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`

	var v models.PlanningVersion
	err := tx.GetContext(ctx, &v, query, id, tenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to lock version row")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to lock version: %v", err)
	}
	return &v, nil
}

func (r *Repository) insertHistory(ctx context.Context, tx database.Tx, tenantID, versionID string, action models.HistoryAction, userID, detail string) error {
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("planning_history")
	sb.Cols("tenant_id", "version_id", "action", "detail", "changed_by", "created_at")
	sb.Values(tenantID, versionID, action, detail, userID, time.Now())

	query, args := sb.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"version_id": versionID,
			"tenant_id":  tenantID,
			"action":     action,
		}).Error("failed to insert history entry")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to record history: %s", err.Error())
	}
	return nil
}
