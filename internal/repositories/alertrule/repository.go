package alertrule

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

// AlertRuleRepository defines the interface for alert rule operations
type AlertRuleRepository interface {
	Create(ctx context.Context, tenantID string, req models.CreateAlertRuleRequest) (*models.AlertRule, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.AlertRule, error)
	List(ctx context.Context, tenantID string, keyFigureID string, page, pageSize int) ([]models.AlertRule, int, error)
	ListEnabled(ctx context.Context, tenantID string) ([]models.AlertRule, error)
	Update(ctx context.Context, tenantID string, id string, req models.UpdateAlertRuleRequest) (*models.AlertRule, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

// Repository implements AlertRuleRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new alert rule repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "alert_rules"

var columns = []string{"id", "tenant_id", "name", "description", "key_figure_id", "time_setting_id", "level", "alert_type", "operator", "threshold", "severity", "enabled", "created_at", "updated_at", "deleted_at"}

// Create creates a new alert rule
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreateAlertRuleRequest) (*models.AlertRule, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRuleRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "name", "description", "key_figure_id", "time_setting_id", "level", "alert_type", "operator", "threshold", "severity", "enabled", "created_at", "updated_at")
	sb.Values(id, tenantID, req.Name, req.Description, req.KeyFigureID, req.TimeSettingID, req.Level, req.AlertType, req.Operator, req.Threshold, req.Severity, enabled, now, now)

	query, args := sb.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
			"name":      req.Name,
		}).Error("failed to create alert rule")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create alert rule: %s", err.Error())
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"name":      req.Name,
	}).Info("created alert rule")

	return r.GetByID(ctx, tenantID, id)
}

// GetByID gets an alert rule by ID
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.AlertRule, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRuleRepository.GetByID")
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

	var rule models.AlertRule
	err := r.db.GetContext(ctx, &rule, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get alert rule by ID")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get alert rule: %v", err)
	}

	return &rule, nil
}

// List lists alert rules for a tenant with an optional key figure filter
func (r *Repository) List(ctx context.Context, tenantID string, keyFigureID string, page, pageSize int) ([]models.AlertRule, int, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRuleRepository.List")
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
		conditions := []string{
			sb.Equal("tenant_id", tenantID),
			sb.IsNull("deleted_at"),
		}
		if keyFigureID != "" {
			conditions = append(conditions, sb.Equal("key_figure_id", keyFigureID))
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to count alert rules")
		return nil, 0, fmt.Errorf("failed to count alert rules: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	applyFilters(sb)
	sb.OrderBy("name ASC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var items []models.AlertRule
	err = r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"page":      page,
			"page_size": pageSize,
		}).Error("failed to list alert rules")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list alert rules: %v", err)
	}

	return items, totalCount, nil
}

// ListEnabled lists the enabled rules for a tenant. Alert evaluation runs
// over exactly this set.
func (r *Repository) ListEnabled(ctx context.Context, tenantID string) ([]models.AlertRule, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRuleRepository.ListEnabled")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("enabled", true),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("name ASC")

	query, args := sb.Build()

	var items []models.AlertRule
	err := r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to list enabled alert rules")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list enabled alert rules: %v", err)
	}

	return items, nil
}

// Update updates an alert rule
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req models.UpdateAlertRuleRequest) (*models.AlertRule, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRuleRepository.Update")
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
	if req.Level != nil {
		sb.Set(sb.Assign("level", *req.Level))
	}
	if req.AlertType != nil {
		sb.Set(sb.Assign("alert_type", *req.AlertType))
	}
	if req.Operator != nil {
		sb.Set(sb.Assign("operator", *req.Operator))
	}
	if req.Threshold != nil {
		sb.Set(sb.Assign("threshold", *req.Threshold))
	}
	if req.Severity != nil {
		sb.Set(sb.Assign("severity", *req.Severity))
	}
	if req.Enabled != nil {
		sb.Set(sb.Assign("enabled", *req.Enabled))
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
		}).Error("failed to update alert rule")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update alert rule: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("updated alert rule")

	return r.GetByID(ctx, tenantID, id)
}

// Delete soft deletes an alert rule
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "AlertRuleRepository.Delete")
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
		}).Error("failed to delete alert rule")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete alert rule: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("deleted alert rule")

	return nil
}
