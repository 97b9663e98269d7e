package history

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// HistoryRepository reads the append-only audit log. Entries are written by
// the repositories that perform the change, inside the same transaction.
type HistoryRepository interface {
	List(ctx context.Context, tenantID string, query models.HistoryQuery) ([]models.HistoryEntry, int, error)
}

// Repository implements HistoryRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new history repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "planning_history"

var columns = []string{"id", "tenant_id", "version_id", "action", "key_figure_id", "time_period", "old_value", "new_value", "detail", "changed_by", "created_at"}

// List lists history entries, newest first
func (r *Repository) List(ctx context.Context, tenantID string, query models.HistoryQuery) ([]models.HistoryEntry, int, error) {
	ctx, span := tracing.StartSpan(ctx, "HistoryRepository.List")
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
		conditions := []string{sb.Equal("tenant_id", tenantID)}
		if query.VersionID != "" {
			conditions = append(conditions, sb.Equal("version_id", query.VersionID))
		}
		if query.Action != "" {
			conditions = append(conditions, sb.Equal("action", query.Action))
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to count history entries")
		return nil, 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	applyFilters(sb)
	sb.OrderBy("id DESC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	listQuery, args := sb.Build()

	var items []models.HistoryEntry
	err = r.db.SelectContext(ctx, &items, listQuery, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"version_id": query.VersionID,
		}).Error("failed to list history entries")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list history entries: %v", err)
	}

	return items, totalCount, nil
}
