package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger logs each request with method, path, status, latency and
// request_id.  5xx responses log at error level, 4xx at warn.
func Logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler write the response before we read the status
				c.Error(err)
			}
			status := c.Response().Status

			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = log.Error().Err(err)
			case status >= 400:
				ev = log.Warn()
			default:
				ev = log.Info()
			}
			ev.Str("request_id", requestID(c)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}

// Recovery converts panics into 500 responses.  The panic value is logged,
// never returned to the client.
func Recovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str("request_id", requestID(c)).
						Str("panic", fmt.Sprint(r)).
						Msg("panic recovered")
					err = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
				}
			}()
			return next(c)
		}
	}
}
