package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/depgraph/pkg/graph"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/schema"

	"github.com/labstack/echo/v4"
)

// errorResponse maps builder errors onto status codes: invalid input is a
// 400, a missing vertex a 404 and anything else a 500.
func errorResponse(c echo.Context, err error) error {
	var verr *schema.ValidationError
	var nf *graph.NotFoundError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":      verr.Error(),
			"violations": verr.Violations,
		})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, map[string]string{"error": nf.Error()})
	default:
		logger.Error("[Server] Request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
