package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/room-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/room-reservation/internal/middleware" // JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and uploaded branding files.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, uploadDir string) {
	e.GET("/healthz", handler.Health(db))
	e.Static("/uploads", uploadDir)
}

// RegisterAuth registers all authentication‑related routes.  Session
// operations live under /v1/auth; /v1/me requires an access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// accepts a refresh token in the body or a bearer token, so no JWT middleware
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers unauthenticated read endpoints.  cache wraps
// the branding read; pass nil to serve it uncached.
func RegisterPublic(e *echo.Echo, s *handler.SettingsHandler, cache echo.MiddlewareFunc) {
	if cache == nil {
		e.GET("/v1/settings", s.Get)
		return
	}
	e.GET("/v1/settings", s.Get, cache)
}
