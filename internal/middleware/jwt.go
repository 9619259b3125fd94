package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/room-reservation/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id" // uint64
	CtxRole   = "role"    // string, as found in the token
	CtxEmail  = "email"   // string
)

// BearerToken returns the raw token of an "Authorization: Bearer" header,
// or "" when there is none.
func BearerToken(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject, role and email claims into the request
// context.  The role is stored as found; RequireRole and the services decide
// whether it is acceptable.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxEmail, claims.Email)
			return next(c)
		}
	}
}
