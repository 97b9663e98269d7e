package alertrule

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/alertrule"
	"github.com/Ramsey-B/sage/internal/repositories/keyfigure"
	"github.com/Ramsey-B/sage/internal/repositories/timesetting"
	"github.com/Ramsey-B/sage/pkg/appcontext"
	"github.com/Ramsey-B/sage/pkg/models"
)

var validate = validator.New()

// Register registers alert rule routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
}

// List returns the tenant's alert rules
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
	keyFigureID := c.QueryParam("key_figure_id")

	ctx, repo, err := ectoinject.GetContext[*alertrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, tenantID, keyFigureID, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.AlertRuleListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Create creates a new alert rule. The referenced key figure and time
// setting must exist.
func Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.CreateAlertRuleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, kfRepo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	kf, err := kfRepo.GetByID(ctx, tenantID, req.KeyFigureID)
	if err != nil {
		return err
	}
	if kf == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "key figure not found")
	}

	ctx, settingRepo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	setting, err := settingRepo.GetByID(ctx, tenantID, req.TimeSettingID)
	if err != nil {
		return err
	}
	if setting == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "time setting not found")
	}
	if !setting.Hierarchy.Enabled(req.Level) {
		return httperror.NewHTTPError(http.StatusBadRequest, "level is not enabled in the time setting's hierarchy")
	}

	ctx, repo, err := ectoinject.GetContext[*alertrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Create(ctx, tenantID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a single alert rule by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ruleID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*alertrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByID(ctx, tenantID, ruleID)
	if err != nil {
		return err
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "alert rule not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Update updates an alert rule
func Update(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ruleID := c.Param("id")

	var req models.UpdateAlertRuleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*alertrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Update(ctx, tenantID, ruleID, req)
	if err != nil {
		return err
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "alert rule not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Delete soft deletes an alert rule
func Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ruleID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*alertrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, ruleID)
	if err != nil {
		return err
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "alert rule not found")
	}

	if err := repo.Delete(ctx, tenantID, ruleID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
