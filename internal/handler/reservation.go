package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/export"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/service"
)

// ReservationHandler exposes the reservation service over HTTP.  Every
// route expects middleware.JWTAuth to have run.
type ReservationHandler struct {
	Svc     *service.ReservationService
	Now     func() time.Time
	Timeout time.Duration
}

func NewReservationHandler(svc *service.ReservationService, now func() time.Time, timeout time.Duration) *ReservationHandler {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ReservationHandler{Svc: svc, Now: now, Timeout: timeout}
}

// reservationReq is the create/update body.  num_people is a pointer so a
// missing value can be told apart from zero.
type reservationReq struct {
	Area            string `json:"area" form:"area"`
	Responsible     string `json:"responsible" form:"responsible"`
	NumPeople       *int   `json:"num_people" form:"num_people"`
	ReservationDate string `json:"reservation_date" form:"reservation_date"`
	StartTime       string `json:"start_time" form:"start_time"`
	EndTime         string `json:"end_time" form:"end_time"`
	Comment         string `json:"comment" form:"comment"`
}

func (r reservationReq) fields() service.ReservationFields {
	return service.ReservationFields{
		Area:            r.Area,
		Responsible:     r.Responsible,
		NumPeople:       r.NumPeople,
		ReservationDate: r.ReservationDate,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Comment:         r.Comment,
	}
}

func (h *ReservationHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// List GET /v1/reservations
func (h *ReservationHandler) List(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.Svc.List(ctx, identity(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Create POST /v1/reservations
func (h *ReservationHandler) Create(c echo.Context) error {
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.Svc.Create(ctx, identity(c), req.fields())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Get GET /v1/reservations/:id
func (h *ReservationHandler) Get(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.Svc.Get(ctx, identity(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Update PUT /v1/reservations/:id
func (h *ReservationHandler) Update(c echo.Context) error {
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.Svc.Update(ctx, identity(c), c.Param("id"), req.fields())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Delete DELETE /v1/reservations/:id
func (h *ReservationHandler) Delete(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Svc.Delete(ctx, identity(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats GET /v1/reservations/stats
func (h *ReservationHandler) Stats(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	st, err := h.Svc.Stats(ctx, identity(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Calendar GET /v1/reservations/calendar?year=&month=
// Missing parameters default to the current month.  The response groups
// reservations by date.
func (h *ReservationHandler) Calendar(c echo.Context) error {
	now := h.Now()
	year, month := now.Year(), int(now.Month())
	if v := c.QueryParam("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "The field year must be a number"})
		}
		year = n
	}
	if v := c.QueryParam("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "The field month must be a number"})
		}
		month = n
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.Svc.ListByMonth(ctx, identity(c), year, time.Month(month))
	if err != nil {
		return respondError(c, err)
	}
	days := map[string][]model.Reservation{}
	for _, r := range out {
		days[r.ReservationDate] = append(days[r.ReservationDate], r)
	}
	return c.JSON(http.StatusOK, echo.Map{"year": year, "month": month, "days": days})
}

// Day GET /v1/reservations/day/:date
func (h *ReservationHandler) Day(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.Svc.ListByDate(ctx, identity(c), c.Param("date"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": c.Param("date"), "reservations": out})
}

// Export GET /v1/reservations/export?from=&to=
// Streams a CSV attachment.  Admins and managers only.
func (h *ReservationHandler) Export(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	rows, err := h.Svc.Export(ctx, identity(c), c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return respondError(c, err)
	}
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.DownloadName(h.Now())+`"`)
	resp.WriteHeader(http.StatusOK)
	return export.WriteCSV(resp, rows, export.StyleRaw)
}
