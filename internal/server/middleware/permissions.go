package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// Permissions carried in the "permissions" claim of a JWT.
const (
	// PermissionGraphRead allows vertex lookups and traversals.
	PermissionGraphRead = "graph.read"
	// PermissionGraphWrite allows creating vertex trees and edges.
	PermissionGraphWrite = "graph.write"
)

// allPermissions is granted to the master API key and to admins without an
// explicit permission claim.
var allPermissions = []string{
	PermissionGraphRead,
	PermissionGraphWrite,
}

func HasPermission(user *AppUser, permission string) bool {
	return user != nil && slices.Contains(user.Permissions, permission)
}

// RequirePermission rejects requests whose user lacks permission. It must
// run after AuthMiddleware.
func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ac := c.(*AppContext)
			switch {
			case ac.User == nil:
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			case !HasPermission(ac.User, permission):
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing permission " + permission})
			}
			return next(c)
		}
	}
}
