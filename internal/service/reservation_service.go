package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/policy"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/schedule"
	"github.com/iliyamo/room-reservation/internal/utils"
)

// ReservationStore captures the persistence interactions needed by the
// reservation service.  Atomically must serialise concurrent callers that
// pass the same date.
type ReservationStore interface {
	FindByID(ctx context.Context, id string) (model.Reservation, error)
	List(ctx context.Context, f repository.ReservationFilter) ([]model.Reservation, error)
	Stats(ctx context.Context, f repository.ReservationFilter, today string) (model.Stats, error)
	Delete(ctx context.Context, id string) error
	Atomically(ctx context.Context, dates []string, fn func(repository.ReservationTx) error) error
}

// EventPublisher delivers domain events.  Failures are logged by the
// service and never fail the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// NewReservationID returns 16 hex characters built from 8 random bytes.
func NewReservationID() (string, error) { return utils.RandomHex(8) }

// ReservationService orchestrates validation, permissions and persistence
// for reservations.
type ReservationService struct {
	store     ReservationStore
	events    EventPublisher
	validator *Validator
	newID     func() (string, error)
	now       func() time.Time
}

// NewReservationService wires dependencies for reservation operations.
// events may be nil.  newID and now default to NewReservationID and
// time.Now.
func NewReservationService(store ReservationStore, events EventPublisher, newID func() (string, error), now func() time.Time) *ReservationService {
	if newID == nil {
		newID = NewReservationID
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		store:     store,
		events:    events,
		validator: NewValidator(now),
		newID:     newID,
		now:       now,
	}
}

func (s *ReservationService) scope(id Identity) repository.ReservationFilter {
	if policy.CanListAll(id.Role) {
		return repository.ReservationFilter{}
	}
	uid := id.ID
	return repository.ReservationFilter{UserID: &uid}
}

// List returns the reservations visible to id ordered by date and start
// time.  Admins and managers see everything, other users only their own.
func (s *ReservationService) List(ctx context.Context, id Identity) ([]model.Reservation, error) {
	if err := id.check(); err != nil {
		return nil, err
	}
	out, err := s.store.List(ctx, s.scope(id))
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", storeError(err))
	}
	return out, nil
}

// ListByMonth returns the reservations visible to id within one calendar
// month.
func (s *ReservationService) ListByMonth(ctx context.Context, id Identity, year int, month time.Month) ([]model.Reservation, error) {
	if err := id.check(); err != nil {
		return nil, err
	}
	if month < time.January || month > time.December {
		return nil, fieldError("month", "The field month must be between 1 and 12")
	}
	f := s.scope(id)
	f.From, f.To = schedule.MonthRange(year, month)
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list month: %w", storeError(err))
	}
	return out, nil
}

// ListByDate returns the reservations visible to id on one date.
func (s *ReservationService) ListByDate(ctx context.Context, id Identity, date string) ([]model.Reservation, error) {
	if err := id.check(); err != nil {
		return nil, err
	}
	d, err := schedule.NormalizeDate(date)
	if err != nil {
		return nil, fieldError("reservation_date", "The field reservation_date must be a date in YYYY-MM-DD format")
	}
	f := s.scope(id)
	f.From, f.To = d, d
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list date: %w", storeError(err))
	}
	return out, nil
}

// Export returns every reservation between from and to (inclusive, either
// may be empty) for CSV rendering.  Only roles allowed to export may call
// it.
func (s *ReservationService) Export(ctx context.Context, id Identity, from, to string) ([]model.Reservation, error) {
	if err := id.check(); err != nil {
		return nil, err
	}
	if !policy.CanExport(id.Role) {
		return nil, ErrPermissionDenied
	}
	var f repository.ReservationFilter
	for _, b := range []struct {
		name string
		in   string
		out  *string
	}{{"from", from, &f.From}, {"to", to, &f.To}} {
		if b.in == "" {
			continue
		}
		d, err := schedule.NormalizeDate(b.in)
		if err != nil {
			return nil, fieldError(b.name, "The field "+b.name+" must be a date in YYYY-MM-DD format")
		}
		*b.out = d
	}
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("export reservations: %w", storeError(err))
	}
	return out, nil
}

// Stats counts the reservations visible to id: total, dated today and
// dated today or later.
func (s *ReservationService) Stats(ctx context.Context, id Identity) (model.Stats, error) {
	if err := id.check(); err != nil {
		return model.Stats{}, err
	}
	st, err := s.store.Stats(ctx, s.scope(id), schedule.Today(s.now()))
	if err != nil {
		return model.Stats{}, fmt.Errorf("reservation stats: %w", storeError(err))
	}
	return st, nil
}

// FindByID returns the reservation with the given id or ErrNotFound.
func (s *ReservationService) FindByID(ctx context.Context, rid string) (model.Reservation, error) {
	r, err := s.store.FindByID(ctx, rid)
	if err != nil {
		return model.Reservation{}, storeError(err)
	}
	return r, nil
}

// Get is FindByID for an identity: reservations owned by someone else are
// only visible to roles that can list everything.
func (s *ReservationService) Get(ctx context.Context, id Identity, rid string) (model.Reservation, error) {
	if err := id.check(); err != nil {
		return model.Reservation{}, err
	}
	r, err := s.FindByID(ctx, rid)
	if err != nil {
		return model.Reservation{}, err
	}
	if !policy.CanListAll(id.Role) && !id.owns(r) {
		return model.Reservation{}, ErrPermissionDenied
	}
	return r, nil
}

// Create validates in and stores it as a new reservation owned by id.
// Validation and insert run under the date lock, so two overlapping
// requests cannot both succeed.
func (s *ReservationService) Create(ctx context.Context, id Identity, in ReservationFields) (res model.Reservation, err error) {
	defer func() { s.logResult("create", id, res.ID, err) }()

	if err = id.check(); err != nil {
		return model.Reservation{}, err
	}

	err = s.store.Atomically(ctx, lockDates(in.ReservationDate), func(tx repository.ReservationTx) error {
		r, result, err := s.validator.Validate(ctx, tx, in, "")
		if err != nil {
			return err
		}
		if !result.OK() {
			return &ValidationError{Result: result}
		}
		now := s.now()
		r.UserID = id.ID
		r.UserEmail = id.Email
		r.CreatedAt = now
		r.UpdatedAt = now

		// one retry on id collision, then give up
		for attempt := 0; attempt < 2; attempt++ {
			if r.ID, err = s.newID(); err != nil {
				return fmt.Errorf("generate id: %w", err)
			}
			err = tx.Insert(ctx, &r)
			if !errors.Is(err, repository.ErrDuplicateID) {
				break
			}
		}
		if errors.Is(err, repository.ErrDuplicateID) {
			return fmt.Errorf("%w: reservation id collided twice", ErrTransient)
		}
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return model.Reservation{}, s.wrap("create reservation", err)
	}

	s.publish(ctx, queue.ActionReservationCreated, id, res)
	return res, nil
}

// Update replaces the editable fields of reservation rid.  Existence and
// permission are checked before any validation; the reservation itself is
// excluded from the overlap check.
func (s *ReservationService) Update(ctx context.Context, id Identity, rid string, in ReservationFields) (res model.Reservation, err error) {
	defer func() { s.logResult("update", id, rid, err) }()

	if err = id.check(); err != nil {
		return model.Reservation{}, err
	}
	current, err := s.FindByID(ctx, rid)
	if err != nil {
		return model.Reservation{}, err
	}
	if !policy.CanModify(id.Role, id.owns(current)) {
		return model.Reservation{}, ErrPermissionDenied
	}

	dates := append(lockDates(in.ReservationDate), current.ReservationDate)
	err = s.store.Atomically(ctx, dates, func(tx repository.ReservationTx) error {
		r, result, err := s.validator.Validate(ctx, tx, in, rid)
		if err != nil {
			return err
		}
		if !result.OK() {
			return &ValidationError{Result: result}
		}
		updated := current
		updated.Area = r.Area
		updated.Responsible = r.Responsible
		updated.NumPeople = r.NumPeople
		updated.ReservationDate = r.ReservationDate
		updated.StartTime = r.StartTime
		updated.EndTime = r.EndTime
		updated.Comment = r.Comment
		updated.UpdatedAt = s.now()
		if err := tx.Update(ctx, &updated); err != nil {
			return err
		}
		res = updated
		return nil
	})
	if err != nil {
		return model.Reservation{}, s.wrap("update reservation", err)
	}

	s.publish(ctx, queue.ActionReservationUpdated, id, res)
	return res, nil
}

// Delete removes reservation rid after the existence and permission checks.
func (s *ReservationService) Delete(ctx context.Context, id Identity, rid string) (err error) {
	defer func() { s.logResult("delete", id, rid, err) }()

	if err = id.check(); err != nil {
		return err
	}
	current, err := s.FindByID(ctx, rid)
	if err != nil {
		return err
	}
	if !policy.CanDelete(id.Role, id.owns(current)) {
		return ErrPermissionDenied
	}
	if err = s.store.Delete(ctx, rid); err != nil {
		return s.wrap("delete reservation", err)
	}

	s.publish(ctx, queue.ActionReservationDeleted, id, current)
	return nil
}

// lockDates returns the normalised form of date, or nothing when it does
// not parse.  Validation reports the bad value; there is nothing to lock.
func lockDates(date string) []string {
	d, err := schedule.NormalizeDate(date)
	if err != nil {
		return nil
	}
	return []string{d}
}

// wrap keeps validation, permission and not-found errors unwrapped for the
// caller and adds context to everything else.
func (s *ReservationService) wrap(op string, err error) error {
	var vErr *ValidationError
	if errors.As(err, &vErr) || errors.Is(err, ErrTransient) {
		return err
	}
	mapped := storeError(err)
	if errors.Is(mapped, ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, mapped)
}

func (s *ReservationService) publish(ctx context.Context, action string, id Identity, r model.Reservation) {
	if s.events == nil {
		return
	}
	ev := queue.NewEvent(ctx, action, "reservation", r.ID, id.ID, r, s.now())
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("action", action).Str("reservation_id", r.ID).Msg("publish event failed")
	}
}

func (s *ReservationService) logResult(op string, id Identity, rid string, err error) {
	var ev *zerolog.Event
	switch ErrorKind(err) {
	case "":
		ev = log.Info()
	case "validation", "not_found":
		ev = log.Debug()
	case "permission_denied", "transient":
		ev = log.Warn()
	default:
		ev = log.Error()
	}
	ev.Str("op", op).
		Str("reservation_id", rid).
		Uint64("user_id", id.ID).
		Str("role", string(id.Role)).
		Str("error_kind", ErrorKind(err)).
		Err(err).
		Msg("reservation")
}
