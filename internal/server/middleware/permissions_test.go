package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name string
		user *AppUser
		want int
	}{
		{name: "no user", want: http.StatusUnauthorized},
		{name: "reader", user: &AppUser{UserID: "u1", Permissions: []string{PermissionGraphRead}}, want: http.StatusForbidden},
		{name: "writer", user: &AppUser{UserID: "u2", Permissions: allPermissions}, want: http.StatusNoContent},
	}

	e := echo.New()
	h := RequirePermission(PermissionGraphWrite)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/vertices", nil), rec)
			if err := h(&AppContext{Context: c, User: tt.user}); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
