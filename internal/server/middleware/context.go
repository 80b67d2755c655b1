package middleware

import (
	"github.com/OFFIS-RIT/depgraph/internal/queue"
	"github.com/OFFIS-RIT/depgraph/pkg/graph"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// App holds the collaborators every request handler shares.
type App struct {
	Graph *graph.Builder
	// Queue is nil when the server runs without a broker; asynchronous
	// writes are then unavailable.
	Queue        queue.Publisher
	KeyFunc      jwt.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
