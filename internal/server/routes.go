package server

import (
	"net/http"

	"github.com/OFFIS-RIT/depgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/depgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, metrics http.Handler) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)
	read := middleware.RequirePermission(middleware.PermissionGraphRead)
	write := middleware.RequirePermission(middleware.PermissionGraphWrite)

	// Vertex routes
	apiRoutes.POST("/vertices", routes.CreateVertexHandler, write)
	apiRoutes.POST("/vertices/async", routes.CreateVertexAsyncHandler, write)
	apiRoutes.GET("/vertices", routes.GetVerticesHandler, read)
	apiRoutes.GET("/vertices/by-ids", routes.GetVerticesByIDsHandler, read)
	apiRoutes.POST("/vertices/lookup", routes.LookupVertexHandler, read)

	// Edge routes
	apiRoutes.POST("/edges", routes.CreateEdgeHandler, write)
	apiRoutes.POST("/edges/lookup", routes.LookupEdgeHandler, read)

	// Traversal routes
	apiRoutes.GET("/graph/descendants", routes.GetDescendantsHandler, read)
	apiRoutes.GET("/graph/ancestors", routes.GetAncestorsHandler, read)
}
