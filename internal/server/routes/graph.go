package routes

import (
	"context"
	"net/http"

	"github.com/OFFIS-RIT/depgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/depgraph/pkg/common"

	"github.com/labstack/echo/v4"
)

type traversal func(ctx context.Context, q common.VertexQuery) ([]common.Path, error)

// vertexQueryParams is a vertex query taken from the query string.
type vertexQueryParams struct {
	Category     string `query:"category"`
	Name         string `query:"name"`
	MicroService string `query:"microService"`
	SystemModule string `query:"systemModule"`
}

func (p vertexQueryParams) query() common.VertexQuery {
	return common.VertexQuery{
		Category:     common.Category(p.Category),
		Name:         p.Name,
		MicroService: p.MicroService,
		SystemModule: p.SystemModule,
	}
}

func traverse(c echo.Context, pick func(*middleware.App) traversal) error {
	var params vertexQueryParams
	if err := c.Bind(&params); err != nil {
		return badRequest(c, "Invalid query parameters")
	}

	paths, err := pick(c.(*middleware.AppContext).App)(c.Request().Context(), params.query())
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, paths)
}

func GetDescendantsHandler(c echo.Context) error {
	return traverse(c, func(app *middleware.App) traversal { return app.Graph.GetDescendants })
}

func GetAncestorsHandler(c echo.Context) error {
	return traverse(c, func(app *middleware.App) traversal { return app.Graph.GetAncestors })
}
