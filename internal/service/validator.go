package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/schedule"
)

// ReservationFields is the raw, user-supplied part of a reservation.
// NumPeople is a pointer so that "missing" and "zero" stay distinct.
type ReservationFields struct {
	Area            string
	Responsible     string
	NumPeople       *int
	ReservationDate string
	StartTime       string
	EndTime         string
	Comment         string
}

// OverlapQuerier answers whether a slot collides with stored reservations.
type OverlapQuerier interface {
	ExistsOverlap(ctx context.Context, date, start, end, excludeID string) (bool, error)
}

const (
	msgPastDate       = "Reservations cannot be made for past dates"
	msgEndBeforeStart = "End time must be after start time"
	msgNumPeople      = "Number of people must be greater than 0"
	msgTimeConflict   = "Another reservation already overlaps the selected time slot. Please choose a different time."
)

// Validator applies the reservation rules in a fixed order: required fields,
// date not in the past, start before end, positive attendance and finally
// the overlap query.  The overlap query only runs when everything else
// passed.
type Validator struct {
	now func() time.Time
}

// NewValidator returns a Validator reading the current date from now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate checks in against the rules and the reservations visible
// through q.  The returned reservation carries the trimmed and normalised
// fields and is only meaningful when the result is OK.  A non-nil error
// means the overlap query itself failed.
func (v *Validator) Validate(ctx context.Context, q OverlapQuerier, in ReservationFields, excludeID string) (model.Reservation, ValidationResult, error) {
	var (
		res ValidationResult
		out model.Reservation
		err error
	)

	out.Area = strings.TrimSpace(in.Area)
	out.Responsible = strings.TrimSpace(in.Responsible)
	out.Comment = strings.TrimSpace(in.Comment)

	if out.Area == "" {
		res.add("area", required("area"))
	}
	if out.Responsible == "" {
		res.add("responsible", required("responsible"))
	}
	if in.NumPeople == nil {
		res.add("num_people", required("num_people"))
	} else {
		out.NumPeople = *in.NumPeople
	}
	if strings.TrimSpace(in.ReservationDate) == "" {
		res.add("reservation_date", required("reservation_date"))
	} else if out.ReservationDate, err = schedule.NormalizeDate(in.ReservationDate); err != nil {
		res.add("reservation_date", "The field reservation_date must be a date in YYYY-MM-DD format")
	}
	if strings.TrimSpace(in.StartTime) == "" {
		res.add("start_time", required("start_time"))
	} else if out.StartTime, err = schedule.NormalizeTime(in.StartTime); err != nil {
		res.add("start_time", "The field start_time must be a time in HH:MM format")
	}
	if strings.TrimSpace(in.EndTime) == "" {
		res.add("end_time", required("end_time"))
	} else if out.EndTime, err = schedule.NormalizeTime(in.EndTime); err != nil {
		res.add("end_time", "The field end_time must be a time in HH:MM format")
	}
	if !res.OK() {
		return out, res, nil
	}

	if out.ReservationDate < schedule.Today(v.now()) {
		res.add("reservation_date", msgPastDate)
	}
	if out.StartTime >= out.EndTime {
		res.add("end_time", msgEndBeforeStart)
	}
	if out.NumPeople <= 0 {
		res.add("num_people", msgNumPeople)
	}
	if !res.OK() {
		return out, res, nil
	}

	conflict, err := q.ExistsOverlap(ctx, out.ReservationDate, out.StartTime, out.EndTime, excludeID)
	if err != nil {
		return out, res, fmt.Errorf("overlap query: %w", err)
	}
	if conflict {
		res.add("time_conflict", msgTimeConflict)
	}
	return out, res, nil
}

func required(field string) string {
	return "The field " + field + " is required"
}
