package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/service"
)

// identity builds the caller of a service operation from the claims stored
// by middleware.JWTAuth.  The role is passed through unchecked; services
// reject unknown roles.
func identity(c echo.Context) service.Identity {
	id, _ := c.Get(middleware.CtxUserID).(uint64)
	role, _ := c.Get(middleware.CtxRole).(string)
	email, _ := c.Get(middleware.CtxEmail).(string)
	return service.Identity{ID: id, Role: model.Role(role), Email: email}
}

// respondError maps service errors onto status codes.  Storage details are
// logged, never returned.
func respondError(c echo.Context, err error) error {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":  vErr.Result.FirstError(),
			"fields": vErr.Result.Fields(),
		})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrPermissionDenied):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}

	rid, _ := c.Get(middleware.CtxRequestID).(string)
	log.Error().Err(err).
		Str("request_id", rid).
		Str("kind", service.ErrorKind(err)).
		Str("path", c.Path()).
		Msg("request failed")
	if errors.Is(err, service.ErrTransient) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": service.ErrTransient.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// ErrorHandler replaces echo's default so routing and middleware errors
// share the {"error": ...} shape of handler responses.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, echo.Map{"error": msg})
		}
	} else {
		err = respondError(c, err)
	}
	if err != nil {
		log.Error().Err(err).Msg("write error response")
	}
}
