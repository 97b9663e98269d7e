package history

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/history"
	"github.com/Ramsey-B/sage/pkg/appcontext"
	"github.com/Ramsey-B/sage/pkg/models"
)

// Register registers history routes
func Register(g *echo.Group) {
	g.GET("", List)
}

// List returns audit log entries, newest first
func List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var query models.HistoryQuery
	if err := c.Bind(&query); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = 20
	}

	ctx, repo, err := ectoinject.GetContext[*history.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, tenantID, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.HistoryListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
}
