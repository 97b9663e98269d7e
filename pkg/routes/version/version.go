package version

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/version"
	"github.com/Ramsey-B/sage/pkg/appcontext"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/versioning"
)

var validate = validator.New()

// Register registers planning version routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.POST("/:id/copy", Copy)
	g.POST("/:id/lock", Lock)
	g.POST("/:id/unlock", Unlock)
}

// List returns the tenant's planning versions
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
	status := models.VersionStatus(c.QueryParam("status"))

	ctx, repo, err := ectoinject.GetContext[*version.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, tenantID, status, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.VersionListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Create creates a new draft version
func Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	userID := appcontext.GetUserID(ctx)

	var req models.CreateVersionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, manager, err := ectoinject.GetContext[*versioning.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get version manager")
	}

	result, err := manager.Create(ctx, tenantID, userID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a single version by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	versionID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*version.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByID(ctx, tenantID, versionID)
	if err != nil {
		return err
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "version not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Update renames a version and, when the body carries a status, transitions
// it through the lifecycle state machine.
func Update(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	userID := appcontext.GetUserID(ctx)

	versionID := c.Param("id")

	var req models.UpdateVersionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Status != nil {
		ctx, manager, err := ectoinject.GetContext[*versioning.Manager](ctx)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get version manager")
		}
		if _, err := manager.Transition(ctx, tenantID, userID, versionID, *req.Status); err != nil {
			return err
		}
	}

	ctx, repo, err := ectoinject.GetContext[*version.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	if req.Name == nil && req.Description == nil {
		result, err := repo.GetByID(ctx, tenantID, versionID)
		if err != nil {
			return err
		}
		if result == nil {
			return httperror.NewHTTPError(http.StatusNotFound, "version not found")
		}
		return c.JSON(http.StatusOK, result)
	}

	result, err := repo.Update(ctx, tenantID, versionID, req)
	if err != nil {
		return err
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "version not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Delete removes an archived version and its planning data
func Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	userID := appcontext.GetUserID(ctx)

	versionID := c.Param("id")

	ctx, manager, err := ectoinject.GetContext[*versioning.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get version manager")
	}

	if err := manager.Delete(ctx, tenantID, userID, versionID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Copy duplicates a version and its planning data into a new draft
func Copy(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	userID := appcontext.GetUserID(ctx)

	versionID := c.Param("id")

	var req models.CopyVersionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, manager, err := ectoinject.GetContext[*versioning.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get version manager")
	}

	result, err := manager.Copy(ctx, tenantID, userID, versionID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Lock transitions an active version to locked
func Lock(c echo.Context) error {
	return transition(c, models.VersionLocked)
}

// Unlock transitions a locked version back to active
func Unlock(c echo.Context) error {
	return transition(c, models.VersionActive)
}

func transition(c echo.Context, to models.VersionStatus) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	userID := appcontext.GetUserID(ctx)

	versionID := c.Param("id")

	ctx, manager, err := ectoinject.GetContext[*versioning.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get version manager")
	}

	result, err := manager.Transition(ctx, tenantID, userID, versionID, to)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
