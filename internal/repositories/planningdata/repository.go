package planningdata

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

// PlanningDataRepository defines the interface for planning data operations
type PlanningDataRepository interface {
	BulkUpsert(ctx context.Context, tenantID, userID string, req models.BulkUpdateRequest) (*models.BulkUpdateResponse, error)
	List(ctx context.Context, tenantID string, query models.PlanningDataQuery) ([]models.PlanningData, int, error)
	ListByVersion(ctx context.Context, tenantID, versionID string) ([]models.PlanningData, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.PlanningData, error)
	Delete(ctx context.Context, tenantID, userID string, id string) error
}

// Repository implements PlanningDataRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new planning data repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "planning_data"

var columns = []string{"id", "tenant_id", "version_id", "key_figure_id", "time_period", "period_type", "value", "notes", "updated_by", "created_at", "updated_at"}

// BulkUpsert writes a batch of cells to one version in a single transaction.
// The version row is locked first so the status check and the writes see one
// consistent state; a concurrent copy or transition waits for the commit.
// Either every cell lands or none do.
func (r *Repository) BulkUpsert(ctx context.Context, tenantID, userID string, req models.BulkUpdateRequest) (*models.BulkUpdateResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "PlanningDataRepository.BulkUpsert")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var status models.VersionStatus
	err = tx.GetContext(ctx, &status, `
		SELECT status FROM planning_versions
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`, req.VersionID, tenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, planningerrors.New(planningerrors.CodeNotFound, "version not found").WithVersion(req.VersionID)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"version_id": req.VersionID,
			"tenant_id":  tenantID,
		}).Error("failed to lock version for bulk upsert")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to lock version: %s", err.Error())
	}

	if !status.IsWritable() {
		return nil, planningerrors.Newf(planningerrors.CodeVersionLocked, "version is %s and cannot be written", status).WithVersion(req.VersionID)
	}

	editable, err := r.editableKeyFigures(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resp := &models.BulkUpdateResponse{}

	for _, cell := range req.Cells {
		kf, ok := editable[cell.KeyFigureID]
		if !ok {
			return nil, planningerrors.Newf(planningerrors.CodeNotFound, "key figure %s not found", cell.KeyFigureID).WithVersion(req.VersionID)
		}
		if kf.IsCalculated() || !kf.Editable {
			return nil, planningerrors.Newf(planningerrors.CodeReadOnlyKeyFigure, "key figure %s is not editable", kf.Code).
				WithVersion(req.VersionID).
				WithKeyFigure(kf.Code).
				WithPeriod(cell.TimePeriod)
		}

		existing, err := r.getCellForUpdate(ctx, tx, tenantID, req.VersionID, cell)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
			sb.InsertInto(tableName)
			sb.Cols("id", "tenant_id", "version_id", "key_figure_id", "time_period", "period_type", "value", "notes", "updated_by", "created_at", "updated_at")
			sb.Values(uuid.New().String(), tenantID, req.VersionID, cell.KeyFigureID, cell.TimePeriod, cell.PeriodType, cell.Value, cell.Notes, userID, now, now)

			query, args := sb.Build()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"version_id":    req.VersionID,
					"key_figure_id": cell.KeyFigureID,
					"time_period":   cell.TimePeriod,
				}).Error("failed to insert planning cell")
				return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert planning cell: %s", err.Error())
			}
			resp.Created++

			if err := r.insertCellHistory(ctx, tx, tenantID, req.VersionID, userID, models.HistoryCellUpdate, cell, nil, &cell.Value, now); err != nil {
				return nil, err
			}
			continue
		}

		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update(tableName)
		ub.Set(
			ub.Assign("value", cell.Value),
			ub.Assign("updated_by", userID),
			ub.Assign("updated_at", now),
		)
		if cell.Notes != nil {
			ub.Set(ub.Assign("notes", *cell.Notes))
		}
		ub.Where(
			ub.Equal("id", existing.ID),
			ub.Equal("tenant_id", tenantID),
		)

		query, args := ub.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"version_id":    req.VersionID,
				"key_figure_id": cell.KeyFigureID,
				"time_period":   cell.TimePeriod,
			}).Error("failed to update planning cell")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update planning cell: %s", err.Error())
		}
		resp.Updated++

		oldValue := existing.Value
		if err := r.insertCellHistory(ctx, tx, tenantID, req.VersionID, userID, models.HistoryCellUpdate, cell, &oldValue, &cell.Value, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit bulk upsert")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"version_id": req.VersionID,
		"tenant_id":  tenantID,
		"created":    resp.Created,
		"updated":    resp.Updated,
	}).Info("bulk upserted planning data")

	return resp, nil
}

// List lists planning data matching the query with pagination
func (r *Repository) List(ctx context.Context, tenantID string, query models.PlanningDataQuery) ([]models.PlanningData, int, error) {
	ctx, span := tracing.StartSpan(ctx, "PlanningDataRepository.List")
	defer span.End()

	page := query.Page
	pageSize := query.PageSize
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
		conditions := []string{
			sb.Equal("tenant_id", tenantID),
			sb.Equal("version_id", query.VersionID),
		}
		if len(query.KeyFigureIDs) > 0 {
			ids := make([]any, 0, len(query.KeyFigureIDs))
			for _, id := range query.KeyFigureIDs {
				ids = append(ids, id)
			}
			conditions = append(conditions, sb.In("key_figure_id", ids...))
		}
		if query.PeriodType != "" {
			conditions = append(conditions, sb.Equal("period_type", query.PeriodType))
		}
		if query.FromPeriod != "" {
			conditions = append(conditions, sb.GreaterEqualThan("time_period", query.FromPeriod))
		}
		if query.ToPeriod != "" {
			conditions = append(conditions, sb.LessEqualThan("time_period", query.ToPeriod))
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to count planning data")
		return nil, 0, fmt.Errorf("failed to count planning data: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	applyFilters(sb)
	sb.OrderBy("time_period ASC", "key_figure_id ASC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	listQuery, args := sb.Build()

	var items []models.PlanningData
	err = r.db.SelectContext(ctx, &items, listQuery, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"version_id": query.VersionID,
		}).Error("failed to list planning data")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list planning data: %v", err)
	}

	return items, totalCount, nil
}

// ListByVersion loads every cell of one version. Grid assembly and alert
// evaluation work off the full snapshot.
func (r *Repository) ListByVersion(ctx context.Context, tenantID, versionID string) ([]models.PlanningData, error) {
	ctx, span := tracing.StartSpan(ctx, "PlanningDataRepository.ListByVersion")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("version_id", versionID),
	)
	sb.OrderBy("time_period ASC", "key_figure_id ASC")

	query, args := sb.Build()

	var items []models.PlanningData
	err := r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"version_id": versionID,
		}).Error("failed to load planning data for version")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to load planning data: %v", err)
	}

	return items, nil
}

// GetByID gets a planning data row by ID
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.PlanningData, error) {
	ctx, span := tracing.StartSpan(ctx, "PlanningDataRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	var pd models.PlanningData
	err := r.db.GetContext(ctx, &pd, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get planning data by ID")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get planning data: %v", err)
	}

	return &pd, nil
}

// Delete removes a planning cell. The version status gates deletes the same
// way it gates writes.
func (r *Repository) Delete(ctx context.Context, tenantID, userID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "PlanningDataRepository.Delete")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var row models.PlanningData
	err = tx.GetContext(ctx, &row, `
		SELECT pd.id, pd.tenant_id, pd.version_id, pd.key_figure_id, pd.time_period, pd.period_type, pd.value, pd.notes, pd.updated_by, pd.created_at, pd.updated_at
		FROM planning_data pd
		JOIN planning_versions v ON v.id = pd.version_id AND v.tenant_id = pd.tenant_id
		WHERE pd.id = $1 AND pd.tenant_id = $2
		FOR UPDATE OF pd`, id, tenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return planningerrors.New(planningerrors.CodeNotFound, "planning data not found")
		}
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("failed to load planning cell for delete")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to load planning cell: %s", err.Error())
	}

	var status models.VersionStatus
	err = tx.GetContext(ctx, &status, `
		SELECT status FROM planning_versions
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`, row.VersionID, tenantID)
	if err != nil {
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to lock version: %s", err.Error())
	}
	if !status.IsWritable() {
		return planningerrors.Newf(planningerrors.CodeVersionLocked, "version is %s and cannot be written", status).WithVersion(row.VersionID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM planning_data WHERE id = $1 AND tenant_id = $2", id, tenantID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("failed to delete planning cell")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete planning cell: %s", err.Error())
	}

	oldValue := row.Value
	cell := models.CellUpdate{
		KeyFigureID: row.KeyFigureID,
		TimePeriod:  row.TimePeriod,
		PeriodType:  row.PeriodType,
	}
	if err := r.insertCellHistory(ctx, tx, tenantID, row.VersionID, userID, models.HistoryCellDelete, cell, &oldValue, nil, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit planning cell delete")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":         id,
		"tenant_id":  tenantID,
		"version_id": row.VersionID,
	}).Info("deleted planning cell")

	return nil
}

func (r *Repository) getCellForUpdate(ctx context.Context, tx database.Tx, tenantID, versionID string, cell models.CellUpdate) (*models.PlanningData, error) {
	var pd models.PlanningData
	err := tx.GetContext(ctx, &pd, `
		SELECT id, tenant_id, version_id, key_figure_id, time_period, period_type, value, notes, updated_by, created_at, updated_at
		FROM planning_data
		WHERE tenant_id = $1 AND version_id = $2 AND key_figure_id = $3 AND time_period = $4 AND period_type = $5
		FOR UPDATE`, tenantID, versionID, cell.KeyFigureID, cell.TimePeriod, cell.PeriodType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"version_id":    versionID,
			"key_figure_id": cell.KeyFigureID,
			"time_period":   cell.TimePeriod,
		}).Error("failed to read planning cell")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to read planning cell: %s", err.Error())
	}
	return &pd, nil
}

func (r *Repository) editableKeyFigures(ctx context.Context, tx database.Tx, tenantID string) (map[string]models.KeyFigure, error) {
	var figures []models.KeyFigure
	err := tx.SelectContext(ctx, &figures, `
		SELECT id, tenant_id, code, name, description, type, unit, aggregation, formula, editable, sort_order, created_at, updated_at, deleted_at
		FROM key_figures
		WHERE tenant_id = $1 AND deleted_at IS NULL`, tenantID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to load key figures for bulk upsert")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to load key figures: %s", err.Error())
	}

	byID := make(map[string]models.KeyFigure, len(figures))
	for _, kf := range figures {
		byID[kf.ID] = kf
	}
	return byID, nil
}

func (r *Repository) insertCellHistory(ctx context.Context, tx database.Tx, tenantID, versionID, userID string, action models.HistoryAction, cell models.CellUpdate, oldValue, newValue *float64, now time.Time) error {
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("planning_history")
	sb.Cols("tenant_id", "version_id", "action", "key_figure_id", "time_period", "old_value", "new_value", "changed_by", "created_at")
	sb.Values(tenantID, versionID, action, cell.KeyFigureID, cell.TimePeriod, oldValue, newValue, userID, now)

	query, args := sb.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"version_id":    versionID,
			"key_figure_id": cell.KeyFigureID,
			"time_period":   cell.TimePeriod,
		}).Error("failed to insert cell history")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to record history: %s", err.Error())
	}
	return nil
}
