package alert

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/alert"
	"github.com/Ramsey-B/sage/internal/repositories/alertrule"
	"github.com/Ramsey-B/sage/internal/repositories/keyfigure"
	"github.com/Ramsey-B/sage/internal/repositories/planningdata"
	"github.com/Ramsey-B/sage/internal/repositories/timesetting"
	"github.com/Ramsey-B/sage/internal/repositories/version"
	"github.com/Ramsey-B/sage/pkg/alerting"
	"github.com/Ramsey-B/sage/pkg/appcontext"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/horizon"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
)

var validate = validator.New()

// Register registers alert routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/unresolved", Unresolved)
	g.POST("/evaluate", Evaluate)
	g.POST("/:id/resolve", Resolve)
}

// List returns alerts filtered by version and resolution state
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

	versionID := c.QueryParam("version_id")
	var resolved *bool
	if raw := c.QueryParam("resolved"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "resolved must be a boolean")
		}
		resolved = &value
	}

	ctx, repo, err := ectoinject.GetContext[*alert.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, tenantID, versionID, resolved, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.AlertListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Unresolved returns the open alerts for a version
func Unresolved(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	versionID := c.QueryParam("version_id")
	if versionID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "version_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*alert.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.ListUnresolved(ctx, tenantID, versionID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.AlertListResponse{
		Items:      items,
		TotalCount: len(items),
		Page:       1,
		PageSize:   len(items),
	})
}

// Evaluate runs every enabled alert rule against one version's data
func Evaluate(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.EvaluateAlertsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, versionRepo, err := ectoinject.GetContext[*version.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	planningVersion, err := versionRepo.GetByID(ctx, tenantID, req.VersionID)
	if err != nil {
		return err
	}
	if planningVersion == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "version not found")
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
	data, err := dataRepo.ListByVersion(ctx, tenantID, req.VersionID)
	if err != nil {
		return err
	}

	ctx, ruleRepo, err := ectoinject.GetContext[*alertrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, settingRepo, err := ectoinject.GetContext[*timesetting.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, alertRepo, err := ectoinject.GetContext[*alert.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, resolver, err := ectoinject.GetContext[*horizon.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get resolver")
	}
	ctx, logger, err := ectoinject.GetContext[ectologger.Logger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get logger")
	}

	ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get event emitter")
	}

	engine := alerting.NewEngine(
		&ruleSource{repo: ruleRepo, tenantID: tenantID},
		&settingSource{repo: settingRepo, tenantID: tenantID},
		&alertSink{repo: alertRepo, tenantID: tenantID, emitter: emitter},
		resolver,
		logger,
	)

	resp, err := engine.EvaluateVersion(ctx, req.VersionID, registry, data)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// Resolve marks an alert resolved
func Resolve(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	userID := appcontext.GetUserID(ctx)

	alertID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*alert.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Resolve(ctx, tenantID, userID, alertID)
	if err != nil {
		return err
	}

	ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get event emitter")
	}
	emitter.Emit(ctx, events.TypeAlertResolved, result.VersionID, map[string]any{
		"alert_id":    result.ID,
		"resolved_by": userID,
	})

	return c.JSON(http.StatusOK, result)
}

// ruleSource binds the alert rule repository to the caller's tenant.
type ruleSource struct {
	repo     *alertrule.Repository
	tenantID string
}

func (s *ruleSource) ListEnabled(ctx context.Context) ([]models.AlertRule, error) {
	return s.repo.ListEnabled(ctx, s.tenantID)
}

type settingSource struct {
	repo     *timesetting.Repository
	tenantID string
}

func (s *settingSource) Get(ctx context.Context, id string) (*models.TimeSetting, error) {
	return s.repo.GetByID(ctx, s.tenantID, id)
}

// alertSink persists raised alerts, counts them and publishes raise events.
type alertSink struct {
	repo     *alert.Repository
	tenantID string
	emitter  *events.Emitter
}

func (s *alertSink) ListUnresolved(ctx context.Context, versionID string) ([]models.Alert, error) {
	return s.repo.ListUnresolved(ctx, s.tenantID, versionID)
}

func (s *alertSink) Create(ctx context.Context, a *models.Alert) (*models.Alert, error) {
	created, err := s.repo.Create(ctx, s.tenantID, a)
	if err != nil {
		return nil, err
	}

	metrics.RecordAlertRaised(s.tenantID, string(created.Severity))
	if s.emitter != nil {
		s.emitter.Emit(ctx, events.TypeAlertRaised, created.VersionID, map[string]any{
			"alert_id":    created.ID,
			"rule_id":     created.RuleID,
			"time_period": created.TimePeriod,
			"severity":    created.Severity,
		})
	}
	return created, nil
}

func (s *alertSink) RefreshValue(ctx context.Context, id string, actualValue float64, message string) error {
	return s.repo.RefreshValue(ctx, s.tenantID, id, actualValue, message)
}
