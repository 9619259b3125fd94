package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/queue"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// CtxRequestID is the echo context key holding the request id.
const CtxRequestID = "request_id"

// RequestID reuses an incoming X-Request-ID or generates a UUID, echoes it
// back and stores it under CtxRequestID.  It also records the client IP on
// the request context so events published downstream can carry it.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Set(CtxRequestID, id)
			c.Response().Header().Set(HeaderRequestID, id)

			req := c.Request()
			c.SetRequest(req.WithContext(queue.WithClientIP(req.Context(), c.RealIP())))
			return next(c)
		}
	}
}

func requestID(c echo.Context) string {
	s, _ := c.Get(CtxRequestID).(string)
	return s
}
