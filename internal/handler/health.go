package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http" // net/http provides status codes and response helpers
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health returns a health‑check endpoint for load balancers.  It answers
// "ok" with 200 when the database responds within a second, 503 otherwise.
// A nil db skips the check.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return c.String(http.StatusServiceUnavailable, "db unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
