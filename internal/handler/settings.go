package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/service"
)

// maxUploadMemory bounds the multipart form kept in memory; larger parts
// spill to temporary files.
const maxUploadMemory = 8 << 20

// uploadFields maps multipart file fields onto setting keys.
var uploadFields = map[string]string{
	"logo_file":            model.SettingAppLogo,
	"login_logo_file":      model.SettingLoginLogo,
	"logo_dark_file":       model.SettingAppLogoDark,
	"login_logo_dark_file": model.SettingLoginLogoDark,
	"favicon_file":         model.SettingAppFavicon,
}

// SettingsHandler serves branding settings.
type SettingsHandler struct {
	Svc *service.SettingsService
	// Purge drops cached public responses after an update.  May be nil.
	Purge   func(ctx context.Context) error
	Timeout time.Duration
}

func NewSettingsHandler(svc *service.SettingsService, purge func(ctx context.Context) error, timeout time.Duration) *SettingsHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SettingsHandler{Svc: svc, Purge: purge, Timeout: timeout}
}

// Get GET /v1/settings (public)
func (h *SettingsHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	out, err := h.Svc.Get(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Update PUT /v1/settings (admin, multipart)
// Text keys are read from form values; files from the *_file fields.
func (h *SettingsHandler) Update(c echo.Context) error {
	form, err := h.form(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid form"})
	}

	text := map[string]string{}
	for k, vs := range form.Value {
		if len(vs) > 0 {
			text[k] = vs[0]
		}
	}
	files := map[string]service.Upload{}
	for field, key := range uploadFields {
		fhs := form.File[field]
		if len(fhs) == 0 || fhs[0].Size == 0 {
			continue
		}
		f, err := fhs[0].Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid upload " + field})
		}
		defer f.Close()
		files[key] = service.Upload{Filename: fhs[0].Filename, Body: f}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	out, err := h.Svc.Update(ctx, identity(c), text, files)
	if err != nil {
		return respondError(c, err)
	}
	if h.Purge != nil {
		if err := h.Purge(ctx); err != nil {
			log.Warn().Err(err).Msg("purge settings cache failed")
		}
	}
	return c.JSON(http.StatusOK, out)
}

// form parses a multipart body, falling back to url-encoded values.
func (h *SettingsHandler) form(c echo.Context) (*multipart.Form, error) {
	req := c.Request()
	err := req.ParseMultipartForm(maxUploadMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		if err := req.ParseForm(); err != nil {
			return nil, err
		}
		return &multipart.Form{Value: req.PostForm}, nil
	}
	if err != nil {
		return nil, err
	}
	return req.MultipartForm, nil
}
