package keyfigure

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// KeyFigureRepository defines the interface for key figure operations
type KeyFigureRepository interface {
	Create(ctx context.Context, tenantID string, req models.CreateKeyFigureRequest) (*models.KeyFigure, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.KeyFigure, error)
	GetByCode(ctx context.Context, tenantID string, code string) (*models.KeyFigure, error)
	List(ctx context.Context, tenantID string, kfType models.KeyFigureType, page, pageSize int) ([]models.KeyFigure, int, error)
	ListAll(ctx context.Context, tenantID string) ([]models.KeyFigure, error)
	Update(ctx context.Context, tenantID string, id string, req models.UpdateKeyFigureRequest) (*models.KeyFigure, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

// Repository implements KeyFigureRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new key figure repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "key_figures"

var columns = []string{"id", "tenant_id", "code", "name", "description", "type", "unit", "aggregation", "formula", "editable", "sort_order", "created_at", "updated_at", "deleted_at"}

// Create creates a new key figure. Codes are normalized to upper case so
// formula references resolve case insensitively.
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreateKeyFigureRequest) (*models.KeyFigure, error) {
	ctx, span := tracing.StartSpan(ctx, "KeyFigureRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()
	code := strings.ToUpper(req.Code)

	aggregation := req.Aggregation
	if aggregation == "" {
		aggregation = models.AggregationSum
	}
	editable := req.Type == models.KeyFigureBase
	if req.Editable != nil {
		editable = *req.Editable
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "code", "name", "description", "type", "unit", "aggregation", "formula", "editable", "sort_order", "created_at", "updated_at")
	sb.Values(id, tenantID, code, req.Name, req.Description, req.Type, req.Unit, aggregation, req.Formula, editable, req.SortOrder, now, now)

	query, args := sb.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
			"code":      code,
		}).Error("failed to create key figure")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create key figure: %s", err.Error())
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"code":      code,
	}).Info("created key figure")

	return r.GetByID(ctx, tenantID, id)
}

// GetByID gets a key figure by ID
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.KeyFigure, error) {
	ctx, span := tracing.StartSpan(ctx, "KeyFigureRepository.GetByID")
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

	var kf models.KeyFigure
	err := r.db.GetContext(ctx, &kf, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get key figure by ID")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get key figure: %v", err)
	}

	return &kf, nil
}

// GetByCode gets a key figure by its code
func (r *Repository) GetByCode(ctx context.Context, tenantID string, code string) (*models.KeyFigure, error) {
	ctx, span := tracing.StartSpan(ctx, "KeyFigureRepository.GetByCode")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("code", strings.ToUpper(code)),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var kf models.KeyFigure
	err := r.db.GetContext(ctx, &kf, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get key figure by code")
		return nil, fmt.Errorf("failed to get key figure: %w", err)
	}

	return &kf, nil
}

// List lists key figures for a tenant with an optional type filter
func (r *Repository) List(ctx context.Context, tenantID string, kfType models.KeyFigureType, page, pageSize int) ([]models.KeyFigure, int, error) {
	ctx, span := tracing.StartSpan(ctx, "KeyFigureRepository.List")
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
		if kfType != "" {
			conditions = append(conditions, sb.Equal("type", kfType))
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to count key figures")
		return nil, 0, fmt.Errorf("failed to count key figures: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	applyFilters(sb)
	sb.OrderBy("sort_order ASC", "code ASC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var items []models.KeyFigure
	err = r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"page":      page,
			"page_size": pageSize,
		}).Error("failed to list key figures")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list key figures: %v", err)
	}

	return items, totalCount, nil
}

// ListAll lists every key figure for a tenant. The formula registry and
// grid assembly need the full set, not a page.
func (r *Repository) ListAll(ctx context.Context, tenantID string) ([]models.KeyFigure, error) {
	ctx, span := tracing.StartSpan(ctx, "KeyFigureRepository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("sort_order ASC", "code ASC")

	query, args := sb.Build()

	var items []models.KeyFigure
	err := r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to list key figures")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list key figures: %v", err)
	}

	return items, nil
}

// Update updates a key figure
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req models.UpdateKeyFigureRequest) (*models.KeyFigure, error) {
	ctx, span := tracing.StartSpan(ctx, "KeyFigureRepository.Update")
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
	if req.Unit != nil {
		sb.Set(sb.Assign("unit", *req.Unit))
	}
	if req.Aggregation != nil {
		sb.Set(sb.Assign("aggregation", *req.Aggregation))
	}
	if req.Formula != nil {
		sb.Set(sb.Assign("formula", *req.Formula))
	}
	if req.Editable != nil {
		sb.Set(sb.Assign("editable", *req.Editable))
	}
	if req.SortOrder != nil {
		sb.Set(sb.Assign("sort_order", *req.SortOrder))
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
		}).Error("failed to update key figure")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update key figure: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("updated key figure")

	return r.GetByID(ctx, tenantID, id)
}

// Delete soft deletes a key figure
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "KeyFigureRepository.Delete")
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
		}).Error("failed to delete key figure")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete key figure: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("deleted key figure")

	return nil
}
