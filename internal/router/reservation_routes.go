package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/model"
)

// RegisterReservations registers the reservation endpoints under
// /v1/reservations.  Any known role may call them; ownership and the
// export permission are decided by the service.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/reservations",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleUser),
	)
	g.GET("", h.List)
	g.POST("", h.Create)

	// static segments are matched before /:id
	g.GET("/stats", h.Stats)
	g.GET("/calendar", h.Calendar)
	g.GET("/day/:date", h.Day)
	g.GET("/export", h.Export, middleware.RequireRole(model.RoleAdmin, model.RoleManager))

	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
