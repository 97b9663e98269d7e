package timesetting

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/timesetting"
	"github.com/Ramsey-B/sage/pkg/appcontext"
	"github.com/Ramsey-B/sage/pkg/horizon"
	"github.com/Ramsey-B/sage/pkg/models"
)

var validate = validator.New()

// Register registers time setting routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.GET("/:id/periods", Periods)
	g.POST("/:id/roll-forward", RollForward)
}

// List returns the tenant's time settings
func List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	ctx, repo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, tenantID, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.TimeSettingListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Create creates a new time setting
func Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.CreateTimeSettingRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validateHorizon(req); err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Create(ctx, tenantID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a single time setting by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	timeSettingID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByID(ctx, tenantID, timeSettingID)
	if err != nil {
		return err
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "time setting not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Update updates a time setting
func Update(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	timeSettingID := c.Param("id")

	var req models.UpdateTimeSettingRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Hierarchy != nil && len(req.Hierarchy.EnabledLevels()) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "hierarchy must enable at least one level")
	}

	ctx, repo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Update(ctx, tenantID, timeSettingID, req)
	if err != nil {
		return err
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "time setting not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Delete soft deletes a time setting
func Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	timeSettingID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, timeSettingID)
	if err != nil {
		return err
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "time setting not found")
	}

	if err := repo.Delete(ctx, tenantID, timeSettingID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Periods resolves the time setting into ordered planning periods at the
// requested hierarchy level
func Periods(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	timeSettingID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	setting, err := repo.GetByID(ctx, tenantID, timeSettingID)
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

	return c.JSON(http.StatusOK, models.PeriodListResponse{
		TimeSettingID: timeSettingID,
		Level:         level,
		Periods:       periods,
	})
}

// RollForward advances a fixed horizon by one base-level period. Rolling
// settings re-anchor on every resolution and have nothing to advance.
func RollForward(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	timeSettingID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	setting, err := repo.GetByID(ctx, tenantID, timeSettingID)
	if err != nil {
		return err
	}
	if setting == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "time setting not found")
	}
	if setting.HorizonType != models.HorizonFixed {
		return httperror.NewHTTPError(http.StatusBadRequest, "only fixed horizons can be rolled forward")
	}
	if setting.StartDate == nil || setting.EndDate == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "time setting has no horizon dates")
	}

	newStart := horizon.Advance(*setting.StartDate, setting.BaseLevel)
	newEnd := horizon.Advance(*setting.EndDate, setting.BaseLevel)

	result, err := repo.Update(ctx, tenantID, timeSettingID, models.UpdateTimeSettingRequest{
		StartDate: &newStart,
		EndDate:   &newEnd,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// validateHorizon enforces the fixed/rolling invariant: fixed settings carry
// explicit dates, rolling settings carry window sizes, and the hierarchy must
// enable the base level.
func validateHorizon(req models.CreateTimeSettingRequest) error {
	switch req.HorizonType {
	case models.HorizonFixed:
		if req.StartDate == nil || req.EndDate == nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "fixed horizon requires start_date and end_date")
		}
		if req.EndDate.Before(*req.StartDate) {
			return httperror.NewHTTPError(http.StatusBadRequest, "end_date must not precede start_date")
		}
	case models.HorizonRolling:
		if req.RollingPeriods <= 0 || req.RollingUnit == "" {
			return httperror.NewHTTPError(http.StatusBadRequest, "rolling horizon requires rolling_periods and rolling_unit")
		}
	}

	if len(req.Hierarchy.EnabledLevels()) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "hierarchy must enable at least one level")
	}
	if !req.Hierarchy.Enabled(req.BaseLevel) {
		return httperror.NewHTTPError(http.StatusBadRequest, "base_level must be enabled in the hierarchy")
	}
	return nil
}
