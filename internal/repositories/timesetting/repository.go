package timesetting

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
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// TimeSettingRepository defines the interface for time setting operations
type TimeSettingRepository interface {
	Create(ctx context.Context, tenantID string, req models.CreateTimeSettingRequest) (*models.TimeSetting, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.TimeSetting, error)
	List(ctx context.Context, tenantID string, page, pageSize int) ([]models.TimeSetting, int, error)
	Update(ctx context.Context, tenantID string, id string, req models.UpdateTimeSettingRequest) (*models.TimeSetting, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

// Repository implements TimeSettingRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new time setting repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "time_settings"

var columns = []string{"id", "tenant_id", "name", "description", "horizon_type", "start_date", "end_date", "rolling_periods", "rolling_unit", "base_level", "hierarchy", "created_at", "updated_at", "deleted_at"}

// timeSettingRow maps the hierarchy JSONB column alongside the model fields.
type timeSettingRow struct {
	models.TimeSetting
	HierarchyRaw database.JSONB[models.TimeHierarchy] `db:"hierarchy"`
}

func (row *timeSettingRow) toModel() *models.TimeSetting {
	setting := row.TimeSetting
	setting.Hierarchy = row.HierarchyRaw.GetValue()
	return &setting
}

// Create creates a new time setting
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreateTimeSettingRequest) (*models.TimeSetting, error) {
	ctx, span := tracing.StartSpan(ctx, "TimeSettingRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	hierarchy := database.JSONB[models.TimeHierarchy]{Data: req.Hierarchy}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "name", "description", "horizon_type", "start_date", "end_date", "rolling_periods", "rolling_unit", "base_level", "hierarchy", "created_at", "updated_at")
	sb.Values(id, tenantID, req.Name, req.Description, req.HorizonType, req.StartDate, req.EndDate, req.RollingPeriods, req.RollingUnit, req.BaseLevel, hierarchy, now, now)

	query, args := sb.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
			"name":      req.Name,
		}).Error("failed to create time setting")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create time setting: %s", err.Error())
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"name":      req.Name,
	}).Info("created time setting")

	return r.GetByID(ctx, tenantID, id)
}

// GetByID gets a time setting by ID
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.TimeSetting, error) {
	ctx, span := tracing.StartSpan(ctx, "TimeSettingRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var row timeSettingRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get time setting by ID")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get time setting: %v", err)
	}

	return row.toModel(), nil
}

// List lists time settings for a tenant with pagination
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.TimeSetting, int, error) {
	ctx, span := tracing.StartSpan(ctx, "TimeSettingRepository.List")
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

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From(tableName)
	countSb.Where(
		countSb.Equal("tenant_id", tenantID),
		countSb.IsNull("deleted_at"),
	)
	countQuery, countArgs := countSb.Build()

	var totalCount int
	err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count time settings")
		return nil, 0, fmt.Errorf("failed to count time settings: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("name ASC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var rows []timeSettingRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"page":      page,
			"page_size": pageSize,
		}).Error("failed to list time settings")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list time settings: %v", err)
	}

	items := make([]models.TimeSetting, 0, len(rows))
	for i := range rows {
		items = append(items, *rows[i].toModel())
	}

	return items, totalCount, nil
}

// Update updates a time setting
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req models.UpdateTimeSettingRequest) (*models.TimeSetting, error) {
	ctx, span := tracing.StartSpan(ctx, "TimeSettingRepository.Update")
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
	if req.HorizonType != nil {
		sb.Set(sb.Assign("horizon_type", *req.HorizonType))
	}
	if req.StartDate != nil {
		sb.Set(sb.Assign("start_date", *req.StartDate))
	}
	if req.EndDate != nil {
		sb.Set(sb.Assign("end_date", *req.EndDate))
	}
	if req.RollingPeriods != nil {
		sb.Set(sb.Assign("rolling_periods", *req.RollingPeriods))
	}
	if req.RollingUnit != nil {
		sb.Set(sb.Assign("rolling_unit", *req.RollingUnit))
	}
	if req.BaseLevel != nil {
		sb.Set(sb.Assign("base_level", *req.BaseLevel))
	}
	if req.Hierarchy != nil {
		sb.Set(sb.Assign("hierarchy", database.JSONB[models.TimeHierarchy]{Data: *req.Hierarchy}))
	}

	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to update time setting")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update time setting: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("updated time setting")

	return r.GetByID(ctx, tenantID, id)
}

// Delete soft deletes a time setting
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "TimeSettingRepository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("deleted_at", time.Now()))
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to delete time setting")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete time setting: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("deleted time setting")

	return nil
}
