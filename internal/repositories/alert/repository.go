package alert

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

// AlertRepository defines the interface for alert operations
type AlertRepository interface {
	Create(ctx context.Context, tenantID string, alert *models.Alert) (*models.Alert, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.Alert, error)
	List(ctx context.Context, tenantID string, versionID string, resolved *bool, page, pageSize int) ([]models.Alert, int, error)
	ListUnresolved(ctx context.Context, tenantID, versionID string) ([]models.Alert, error)
	RefreshValue(ctx context.Context, tenantID, id string, actualValue float64, message string) error
	Resolve(ctx context.Context, tenantID, userID, id string) (*models.Alert, error)
}

// Repository implements AlertRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new alert repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "alerts"

var columns = []string{"id", "tenant_id", "rule_id", "version_id", "key_figure_id", "time_period", "period_type", "alert_type", "severity", "message", "actual_value", "threshold", "resolved", "resolved_by", "resolved_at", "created_at", "updated_at"}

// Create raises a new alert
func (r *Repository) Create(ctx context.Context, tenantID string, alert *models.Alert) (*models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "rule_id", "version_id", "key_figure_id", "time_period", "period_type", "alert_type", "severity", "message", "actual_value", "threshold", "resolved", "created_at", "updated_at")
	sb.Values(id, tenantID, alert.RuleID, alert.VersionID, alert.KeyFigureID, alert.TimePeriod, alert.PeriodType, alert.AlertType, alert.Severity, alert.Message, alert.ActualValue, alert.Threshold, false, now, now)

	query, args := sb.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"rule_id":     alert.RuleID,
			"version_id":  alert.VersionID,
			"time_period": alert.TimePeriod,
		}).Error("failed to create alert")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create alert: %s", err.Error())
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          id,
		"rule_id":     alert.RuleID,
		"version_id":  alert.VersionID,
		"time_period": alert.TimePeriod,
		"severity":    alert.Severity,
	}).Info("raised alert")

	return r.GetByID(ctx, tenantID, id)
}

// GetByID gets an alert by ID
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	var a models.Alert
	err := r.db.GetContext(ctx, &a, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get alert by ID")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get alert: %v", err)
	}

	return &a, nil
}

// List lists alerts with optional version and resolved filters
func (r *Repository) List(ctx context.Context, tenantID string, versionID string, resolved *bool, page, pageSize int) ([]models.Alert, int, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRepository.List")
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
		if versionID != "" {
			conditions = append(conditions, sb.Equal("version_id", versionID))
		}
		if resolved != nil {
			conditions = append(conditions, sb.Equal("resolved", *resolved))
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to count alerts")
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	applyFilters(sb)
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var items []models.Alert
	err = r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"version_id": versionID,
		}).Error("failed to list alerts")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list alerts: %v", err)
	}

	return items, totalCount, nil
}

// ListUnresolved lists the open alerts for a version. Evaluation keys off
// this set to stay idempotent.
func (r *Repository) ListUnresolved(ctx context.Context, tenantID, versionID string) ([]models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRepository.ListUnresolved")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("version_id", versionID),
		sb.Equal("resolved", false),
	)
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()

	var items []models.Alert
	err := r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"version_id": versionID,
		}).Error("failed to list unresolved alerts")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list unresolved alerts: %v", err)
	}

	return items, nil
}

// RefreshValue updates the actual value and message of an open alert after
// a re-evaluation over changed data.
func (r *Repository) RefreshValue(ctx context.Context, tenantID, id string, actualValue float64, message string) error {
	ctx, span := tracing.StartSpan(ctx, "AlertRepository.RefreshValue")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("actual_value", actualValue),
		sb.Assign("message", message),
		sb.Assign("updated_at", time.Now()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("resolved", false),
	)

	query, args := sb.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to refresh alert value")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to refresh alert: %v", err)
	}

	return nil
}

// Resolve marks an alert resolved and records who resolved it.
func (r *Repository) Resolve(ctx context.Context, tenantID, userID, id string) (*models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "AlertRepository.Resolve")
	defer span.End()

	existing, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, planningerrors.New(planningerrors.CodeNotFound, "alert not found")
	}
	if existing.Resolved {
		return existing, nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("resolved", true),
		sb.Assign("resolved_by", userID),
		sb.Assign("resolved_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("resolved", false),
	)

	query, args := sb.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to resolve alert")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve alert: %s", err.Error())
	}

	hb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	hb.InsertInto("planning_history")
	hb.Cols("tenant_id", "version_id", "action", "key_figure_id", "time_period", "detail", "changed_by", "created_at")
	hb.Values(tenantID, existing.VersionID, models.HistoryAlertResolved, existing.KeyFigureID, existing.TimePeriod, fmt.Sprintf("resolved alert %s", id), userID, now)

	historyQuery, historyArgs := hb.Build()
	if _, err := tx.ExecContext(ctx, historyQuery, historyArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("failed to record alert resolution")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to record history: %s", err.Error())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit alert resolution")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Info("resolved alert")

	return r.GetByID(ctx, tenantID, id)
}
