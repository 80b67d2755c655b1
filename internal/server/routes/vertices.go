package routes

import (
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/depgraph/internal/queue"
	"github.com/OFFIS-RIT/depgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/graph"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/schema"

	"github.com/labstack/echo/v4"
)

func CreateVertexHandler(c echo.Context) error {
	var spec schema.VertexSpec
	if err := c.Bind(&spec); err != nil {
		return badRequest(c, "Invalid request body")
	}

	vertex, err := schema.Decode(&spec)
	if err != nil {
		return errorResponse(c, err)
	}

	b := c.(*middleware.AppContext).App.Graph
	records, err := b.CreateVertex(c.Request().Context(), vertex, "")
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, records)
}

// CreateVertexAsyncHandler checks the tree and hands it to the worker. The
// response carries the correlation id of the queued message.
func CreateVertexAsyncHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Queue is not configured"})
	}

	var spec schema.VertexSpec
	if err := c.Bind(&spec); err != nil {
		return badRequest(c, "Invalid request body")
	}

	vertex, err := schema.Decode(&spec)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := app.Graph.Validate(vertex); err != nil {
		return errorResponse(c, err)
	}

	msg, err := queue.NewVertexMessage(&spec)
	if err != nil {
		return errorResponse(c, err)
	}
	body, err := msg.Marshal()
	if err != nil {
		return errorResponse(c, err)
	}

	ctx := c.Request().Context()
	if err := queue.PublishFIFO(ctx, app.Queue, queue.VertexQueue, msg.CorrelationID, body); err != nil {
		return errorResponse(c, err)
	}
	logger.Info("[Server] Vertex tree queued", "correlation_id", msg.CorrelationID, "root", spec.Name)

	return c.JSON(http.StatusAccepted, map[string]string{"correlation_id": msg.CorrelationID})
}

func GetVerticesHandler(c echo.Context) error {
	category := common.Category(c.QueryParam("category"))
	if !category.Valid() {
		return errorResponse(c, &schema.ValidationError{Violations: []schema.Violation{{
			Field:     "category",
			Condition: "must be one of businessModule, microService, systemModule, component",
		}}})
	}

	b := c.(*middleware.AppContext).App.Graph
	records, err := b.GetVerticesByCategory(c.Request().Context(), category)
	if err != nil {
		return errorResponse(c, err)
	}
	if records == nil {
		records = []*common.VertexRecord{}
	}

	return c.JSON(http.StatusOK, records)
}

func GetVerticesByIDsHandler(c echo.Context) error {
	var ids []string
	for id := range strings.SplitSeq(c.QueryParam("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return badRequest(c, "ids is required")
	}

	b := c.(*middleware.AppContext).App.Graph
	records, err := b.GetVerticesByIDs(c.Request().Context(), ids)
	if err != nil {
		return errorResponse(c, err)
	}
	if records == nil {
		records = []*common.VertexRecord{}
	}

	return c.JSON(http.StatusOK, records)
}

func LookupVertexHandler(c echo.Context) error {
	var q common.VertexQuery
	if err := c.Bind(&q); err != nil {
		return badRequest(c, "Invalid request body")
	}

	b := c.(*middleware.AppContext).App.Graph
	record, err := b.GetVertex(c.Request().Context(), q)
	if err != nil {
		return errorResponse(c, err)
	}
	if record == nil {
		return errorResponse(c, &graph.NotFoundError{Query: q})
	}

	return c.JSON(http.StatusOK, record)
}
