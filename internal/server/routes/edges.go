package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/depgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/depgraph/pkg/common"

	"github.com/labstack/echo/v4"
)

type edgeRequest struct {
	From *common.VertexQuery `json:"from" validate:"required"`
	To   *common.VertexQuery `json:"to" validate:"required"`
}

func bindEdgeRequest(c echo.Context) (*edgeRequest, error) {
	var req edgeRequest
	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func CreateEdgeHandler(c echo.Context) error {
	req, err := bindEdgeRequest(c)
	if err != nil {
		return badRequest(c, "Invalid request body: from and to are required")
	}

	b := c.(*middleware.AppContext).App.Graph
	edge, err := b.CreateEdgeByVertices(c.Request().Context(), *req.From, *req.To, "")
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, edge)
}

func LookupEdgeHandler(c echo.Context) error {
	req, err := bindEdgeRequest(c)
	if err != nil {
		return badRequest(c, "Invalid request body: from and to are required")
	}

	b := c.(*middleware.AppContext).App.Graph
	edge, err := b.GetEdgeByVertices(c.Request().Context(), *req.From, *req.To)
	if err != nil {
		return errorResponse(c, err)
	}
	if edge == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "edge not found"})
	}

	return c.JSON(http.StatusOK, edge)
}
