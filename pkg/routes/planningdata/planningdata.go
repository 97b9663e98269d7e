package planningdata

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/keyfigure"
	"github.com/Ramsey-B/sage/internal/repositories/planningdata"
	"github.com/Ramsey-B/sage/internal/repositories/timesetting"
	"github.com/Ramsey-B/sage/internal/repositories/version"
	"github.com/Ramsey-B/sage/pkg/appcontext"
	planningerrors "github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/grid"
	"github.com/Ramsey-B/sage/pkg/horizon"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/versioning"
)

var validate = validator.New()

// Register registers planning data routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/grid", Grid)
	g.POST("/bulk-update", BulkUpdate)
	g.DELETE("/:id", Delete)
}

// List returns stored planning data rows matching the query
func List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var query models.PlanningDataQuery
	if err := c.Bind(&query); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if query.VersionID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "version_id is required")
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = 20
	}

	ctx, repo, err := ectoinject.GetContext[*planningdata.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, tenantID, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.PlanningDataListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
}

// Grid assembles the planning grid for one version at the requested level
func Grid(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	versionID := c.QueryParam("version_id")
	timeSettingID := c.QueryParam("time_setting_id")
	if versionID == "" || timeSettingID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "version_id and time_setting_id are required")
	}

	start := time.Now()

	ctx, versionRepo, err := ectoinject.GetContext[*version.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	planningVersion, err := versionRepo.GetByID(ctx, tenantID, versionID)
	if err != nil {
		return err
	}
	if planningVersion == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "version not found")
	}

	ctx, settingRepo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	setting, err := settingRepo.GetByID(ctx, tenantID, timeSettingID)
	if err != nil {
		return err
	}
	if setting == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "time setting not found")
	}

	level := models.Granularity(c.QueryParam("level"))
	if level == "" {
		level = setting.BaseLevel
	}

	ctx, resolver, err := ectoinject.GetContext[*horizon.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get resolver")
	}
	periods, err := resolver.Resolve(setting, level)
	if err != nil {
		return err
	}

	ctx, kfRepo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	figures, err := kfRepo.ListAll(ctx, tenantID)
	if err != nil {
		return err
	}
	registry, err := formula.NewRegistry(figures)
	if err != nil {
		return err
	}

	ctx, dataRepo, err := ectoinject.GetContext[*planningdata.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	data, err := dataRepo.ListByVersion(ctx, tenantID, versionID)
	if err != nil {
		metrics.RecordGridBuild(tenantID, "error", time.Since(start).Seconds())
		return err
	}

	result, err := grid.Build(versionID, level, registry, periods, data)
	if err != nil {
		metrics.RecordGridBuild(tenantID, "error", time.Since(start).Seconds())
		return err
	}

	if filter := c.QueryParam("key_figure_ids"); filter != "" {
		result.Rows = filterRows(result.Rows, strings.Split(filter, ","))
	}

	metrics.RecordGridBuild(tenantID, "ok", time.Since(start).Seconds())
	return c.JSON(http.StatusOK, result)
}

// BulkUpdate writes a batch of cells to one version atomically. The version's
// write lock is held across the transaction so cross-instance writers
// serialize instead of interleaving.
func BulkUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	userID := appcontext.GetUserID(ctx)

	var req models.BulkUpdateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	for _, cell := range req.Cells {
		parsed, _, err := horizon.ParsePeriod(cell.TimePeriod)
		if err != nil {
			return err
		}
		if parsed != cell.PeriodType {
			return planningerrors.Newf(planningerrors.CodeInvalidPeriod, "period %q is not a %s key", cell.TimePeriod, cell.PeriodType).
				WithVersion(req.VersionID).
				WithPeriod(cell.TimePeriod)
		}
	}

	ctx, manager, err := ectoinject.GetContext[*versioning.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get version manager")
	}
	lock, err := manager.AcquireWriteLock(ctx, tenantID, req.VersionID)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	ctx, repo, err := ectoinject.GetContext[*planningdata.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	start := time.Now()
	resp, err := repo.BulkUpsert(ctx, tenantID, userID, req)
	if err != nil {
		metrics.RecordBulkUpdate(tenantID, "error", len(req.Cells), time.Since(start).Seconds())
		return err
	}
	metrics.RecordBulkUpdate(tenantID, "ok", len(req.Cells), time.Since(start).Seconds())

	ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get event emitter")
	}
	emitter.Emit(ctx, events.TypeCellsUpdated, req.VersionID, map[string]any{
		"created": resp.Created,
		"updated": resp.Updated,
	})

	return c.JSON(http.StatusOK, resp)
}

// Delete removes a single planning cell
func Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	userID := appcontext.GetUserID(ctx)

	dataID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*planningdata.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	if err := repo.Delete(ctx, tenantID, userID, dataID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func filterRows(rows []grid.Row, ids []string) []grid.Row {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[strings.TrimSpace(id)] = true
	}
	filtered := make([]grid.Row, 0, len(rows))
	for _, row := range rows {
		if keep[row.KeyFigureID] {
			filtered = append(filtered, row)
		}
	}
	return filtered
}
