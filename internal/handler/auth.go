package handler

import (
	"context"  // request-scoped deadlines for store calls
	"errors"
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // token expiry timestamps

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/room-reservation/internal/config"     // app configuration
	"github.com/iliyamo/room-reservation/internal/middleware" // bearer token extraction
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/service"
	"github.com/iliyamo/room-reservation/internal/utils" // token issuing and hashing
)

// TokenStore persists hashed refresh tokens.  *repository.TokenRepo
// satisfies it.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *service.UserService
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u *service.UserService, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func (h *AuthHandler) timeout(c echo.Context) (context.Context, context.CancelFunc) {
	d := h.Cfg.RequestTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// issue creates an access/refresh pair for u and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, utils.Claims{UserID: u.ID, Role: string(u.Role), Email: u.Email}, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register: create a plain user and return tokens immediately.  Field
// rules live in UserService so the messages match admin user creation.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.timeout(c)
	defer cancel()

	u, err := h.Users.Register(ctx, service.NewUser{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	ctx, cancel := h.timeout(c)
	defer cancel()

	u, err := h.Users.Authenticate(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := h.timeout(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.Get(ctx, userID)
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes one session when a refresh token is posted, or every
// session of the bearer when only an access token is present.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := h.timeout(c)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	if raw := middleware.BearerToken(c); raw != "" {
		claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw)
		if err != nil || claims.UserID == 0 {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		if err := h.Tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(c echo.Context) error {
	id := identity(c)
	return c.JSON(http.StatusOK, userPart{ID: id.ID, Email: id.Email, Role: id.Role})
}
