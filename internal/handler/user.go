package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/service"
)

// UserHandler serves the admin user management endpoints.
type UserHandler struct {
	Svc     *service.UserService
	Timeout time.Duration
}

func NewUserHandler(svc *service.UserService, timeout time.Duration) *UserHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UserHandler{Svc: svc, Timeout: timeout}
}

type createUserReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin manager user"`
}

type updateUserReq struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin manager user"`
}

type userView struct {
	ID        uint64     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func viewOf(u model.User) userView {
	return userView{ID: u.ID, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

func (h *UserHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

func targetID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// List GET /v1/users
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	actor := identity(c)
	users, err := h.Svc.List(ctx, actor)
	if err != nil {
		return respondError(c, err)
	}
	counts, err := h.Svc.CountByRole(ctx, actor)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out, "counts": counts})
}

// Create POST /v1/users
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Svc.Create(ctx, identity(c), service.NewUser{Email: req.Email, Password: req.Password, Role: req.Role})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, viewOf(u))
}

// Update PUT /v1/users/:id
func (h *UserHandler) Update(c echo.Context) error {
	id, ok := targetID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateUserReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Svc.Update(ctx, identity(c), id, service.UserPatch{Email: req.Email, Password: req.Password, Role: req.Role})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

// Delete DELETE /v1/users/:id
func (h *UserHandler) Delete(c echo.Context) error {
	id, ok := targetID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Svc.Delete(ctx, identity(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
