package keyfigure

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/keyfigure"
	"github.com/Ramsey-B/sage/pkg/appcontext"
	planningerrors "github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/models"
)

var validate = validator.New()

// Register registers key figure routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.POST("/validate-formula", ValidateFormula)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.GET("/:id/dependencies", Dependencies)
}

// List returns the tenant's key figures
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
	kfType := models.KeyFigureType(c.QueryParam("type"))

	ctx, repo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, tenantID, kfType, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.KeyFigureListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Create creates a new key figure. Calculated figures have their formula
// parsed and checked against the tenant's existing figures before saving.
func Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.CreateKeyFigureRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Type == models.KeyFigureCalculated && strings.TrimSpace(req.Formula) == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "calculated key figures require a formula")
	}
	if req.Type == models.KeyFigureBase && strings.TrimSpace(req.Formula) != "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "base key figures cannot carry a formula")
	}

	ctx, repo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	code := strings.ToUpper(req.Code)
	existing, err := repo.GetByCode(ctx, tenantID, code)
	if err != nil {
		return err
	}
	if existing != nil {
		return planningerrors.Newf(planningerrors.CodeDuplicateKeyFigureCode, "key figure with code %q already exists", code).WithKeyFigure(code)
	}

	if req.Type == models.KeyFigureCalculated {
		if _, err := candidateDependencies(ctx, repo, tenantID, code, req.Formula); err != nil {
			return err
		}
	}

	result, err := repo.Create(ctx, tenantID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a single key figure by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	keyFigureID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByID(ctx, tenantID, keyFigureID)
	if err != nil {
		return err
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "key figure not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Update updates a key figure. A formula change is validated against the
// rest of the tenant's figures, including the cycle check.
func Update(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	keyFigureID := c.Param("id")

	var req models.UpdateKeyFigureRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, keyFigureID)
	if err != nil {
		return err
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "key figure not found")
	}

	if req.Formula != nil {
		if !existing.IsCalculated() {
			return httperror.NewHTTPError(http.StatusBadRequest, "base key figures cannot carry a formula")
		}
		if _, err := candidateDependencies(ctx, repo, tenantID, existing.Code, *req.Formula); err != nil {
			return err
		}
	}

	result, err := repo.Update(ctx, tenantID, keyFigureID, req)
	if err != nil {
		return err
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "key figure not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Delete soft deletes a key figure. A figure still referenced by another
// figure's formula cannot be removed.
func Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	keyFigureID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, keyFigureID)
	if err != nil {
		return err
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "key figure not found")
	}

	registry, err := tenantRegistry(ctx, repo, tenantID)
	if err != nil {
		return err
	}
	for _, kf := range registry.Figures() {
		if kf.Code == existing.Code {
			continue
		}
		for _, dep := range registry.TransitiveDependencies(kf.Code) {
			if dep == existing.Code {
				return httperror.NewHTTPErrorf(http.StatusConflict, "key figure %s is referenced by the formula of %s", existing.Code, kf.Code)
			}
		}
	}

	if err := repo.Delete(ctx, tenantID, keyFigureID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ValidateFormula parses and checks a formula without saving it
func ValidateFormula(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.ValidateFormulaRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	deps, err := candidateDependencies(ctx, repo, tenantID, strings.ToUpper(req.Code), req.Formula)
	if err != nil {
		var planningErr *planningerrors.PlanningError
		if errors.As(err, &planningErr) {
			return c.JSON(http.StatusOK, models.ValidateFormulaResponse{
				Valid: false,
				Error: planningErr.Message,
			})
		}
		return err
	}

	return c.JSON(http.StatusOK, models.ValidateFormulaResponse{
		Valid:        true,
		Dependencies: deps,
	})
}

// Dependencies returns the direct and transitive dependency codes of a figure
func Dependencies(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	keyFigureID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*keyfigure.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, keyFigureID)
	if err != nil {
		return err
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "key figure not found")
	}

	registry, err := tenantRegistry(ctx, repo, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.KeyFigureDependenciesResponse{
		Code:       existing.Code,
		Direct:     registry.DirectDependencies(existing.Code),
		Transitive: registry.TransitiveDependencies(existing.Code),
	})
}

func tenantRegistry(ctx context.Context, repo *keyfigure.Repository, tenantID string) (*formula.Registry, error) {
	figures, err := repo.ListAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return formula.NewRegistry(figures)
}

func candidateDependencies(ctx context.Context, repo *keyfigure.Repository, tenantID, code, input string) ([]string, error) {
	registry, err := tenantRegistry(ctx, repo, tenantID)
	if err != nil {
		return nil, err
	}
	return registry.ValidateCandidate(code, input)
}
