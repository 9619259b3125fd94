package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/handler"    // admin handlers
	"github.com/iliyamo/room-reservation/internal/middleware" // JWT + role middlewares
	"github.com/iliyamo/room-reservation/internal/model"
)

// RegisterAdmin registers admin-only endpoints under /v1.
// All routes require a valid JWT and the admin role.
func RegisterAdmin(e *echo.Echo, u *handler.UserHandler, s *handler.SettingsHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Users ----
	g.GET("/users", u.List)
	g.POST("/users", u.Create)
	g.PUT("/users/:id", u.Update)
	g.DELETE("/users/:id", u.Delete)

	// ---- Branding ----
	g.PUT("/settings", s.Update)
}
