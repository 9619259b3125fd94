package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/testfixtures"
)

var (
	user1   = Identity{ID: 1, Role: model.RoleUser, Email: "one@example.com"}
	user2   = Identity{ID: 2, Role: model.RoleUser, Email: "two@example.com"}
	admin   = Identity{ID: 9, Role: model.RoleAdmin, Email: "admin@example.com"}
	manager = Identity{ID: 8, Role: model.RoleManager, Email: "manager@example.com"}
)

type harness struct {
	svc    *ReservationService
	store  *testfixtures.ReservationStore
	clock  *testfixtures.Clock
	ids    *testfixtures.IDGenerator
	events *testfixtures.Publisher
}

func newHarness(t *testing.T, rows ...model.Reservation) harness {
	t.Helper()
	h := harness{
		store:  testfixtures.NewReservationStore(rows...),
		clock:  testfixtures.NewClock(time.Date(2025, time.May, 20, 9, 0, 0, 0, time.Local)),
		ids:    testfixtures.NewIDGenerator(),
		events: &testfixtures.Publisher{},
	}
	h.svc = NewReservationService(h.store, h.events, h.ids.Next, h.clock.Now)
	return h
}

func people(n int) *int { return &n }

func slot(date, start, end string) ReservationFields {
	return ReservationFields{
		Area:            "Conference A",
		Responsible:     "Ana",
		NumPeople:       people(10),
		ReservationDate: date,
		StartTime:       start,
		EndTime:         end,
	}
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
	return vErr.Result.Fields()
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// 1. first booking succeeds
	first, err := h.svc.Create(ctx, user1, slot("2025-06-01", "10:00", "11:00"))
	require.NoError(t, err)
	assert.Len(t, first.ID, 16)

	// 2. overlapping booking is refused
	_, err = h.svc.Create(ctx, user2, slot("2025-06-01", "10:30", "11:30"))
	assert.Contains(t, validationFields(t, err), "time_conflict")

	// 3. back-to-back booking is accepted
	second, err := h.svc.Create(ctx, user2, slot("2025-06-01", "11:00", "12:00"))
	require.NoError(t, err)

	// 4. plain users cannot touch other users' reservations
	_, err = h.svc.Update(ctx, user1, second.ID, slot("2025-06-01", "13:00", "14:00"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, h.svc.Delete(ctx, user1, second.ID), ErrPermissionDenied)

	// 5. admins can
	updated, err := h.svc.Update(ctx, admin, second.ID, slot("2025-06-01", "13:00", "14:00"))
	require.NoError(t, err)
	assert.Equal(t, "13:00:00", updated.StartTime)
	assert.Equal(t, user2.ID, updated.UserID, "ownership is not transferred")

	// 6. past dates are rejected without writing anything
	before := h.store.Len()
	_, err = h.svc.Create(ctx, user1, slot(h.clock.Date(-1), "10:00", "11:00"))
	assert.Equal(t, msgPastDate, validationFields(t, err)["reservation_date"])
	assert.Equal(t, before, h.store.Len())

	assert.Equal(t, []string{
		queue.ActionReservationCreated,
		queue.ActionReservationCreated,
		queue.ActionReservationUpdated,
	}, h.events.Actions)
}

func TestCreateFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	in := slot("2025-06-03", "9:00", "10:30")
	in.Comment = "  projector  "
	created, err := h.svc.Create(ctx, user1, in)
	require.NoError(t, err)

	got, err := h.svc.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "Conference A", got.Area)
	assert.Equal(t, "Ana", got.Responsible)
	assert.Equal(t, 10, got.NumPeople)
	assert.Equal(t, "2025-06-03", got.ReservationDate)
	assert.Equal(t, "09:00:00", got.StartTime)
	assert.Equal(t, "10:30:00", got.EndTime)
	assert.Equal(t, "projector", got.Comment)
	assert.Equal(t, user1.ID, got.UserID)
	assert.Equal(t, user1.Email, got.UserEmail)
	assert.Equal(t, h.clock.Now(), got.CreatedAt)
	assert.Equal(t, h.clock.Now(), got.UpdatedAt)
}

func TestFindByIDNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.FindByID(context.Background(), "ffffffffffffffff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidationOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	t.Run("missing fields stop validation", func(t *testing.T) {
		_, err := h.svc.Create(ctx, user1, ReservationFields{Area: "A", ReservationDate: "2020-01-01"})
		fields := validationFields(t, err)
		assert.NotContains(t, fields, "reservation_date", "past date is not checked when fields are missing")
		assert.Contains(t, fields, "responsible")
		assert.Contains(t, fields, "num_people")
		assert.Contains(t, fields, "start_time")
		assert.Contains(t, fields, "end_time")
		assert.Equal(t, 0, h.store.OverlapQueries)
	})

	t.Run("first error follows rule order", func(t *testing.T) {
		in := slot(h.clock.Date(-3), "12:00", "11:00")
		in.NumPeople = people(0)
		_, err := h.svc.Create(ctx, user1, in)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, msgPastDate, vErr.Result.FirstError())
		assert.Equal(t, []string{"reservation_date", "end_time", "num_people"}, fieldNames(vErr.Result))
		assert.Equal(t, 0, h.store.OverlapQueries)
	})

	t.Run("zero length slot is refused by ordering rule", func(t *testing.T) {
		_, err := h.svc.Create(ctx, user1, slot(h.clock.Date(1), "13:00", "13:00"))
		assert.Equal(t, msgEndBeforeStart, validationFields(t, err)["end_time"])
		assert.Equal(t, 0, h.store.OverlapQueries)
	})

	t.Run("negative attendance", func(t *testing.T) {
		in := slot(h.clock.Date(1), "13:00", "14:00")
		in.NumPeople = people(-2)
		_, err := h.svc.Create(ctx, user1, in)
		assert.Equal(t, msgNumPeople, validationFields(t, err)["num_people"])
	})

	t.Run("malformed time", func(t *testing.T) {
		_, err := h.svc.Create(ctx, user1, slot(h.clock.Date(1), "noon", "14:00"))
		assert.Contains(t, validationFields(t, err), "start_time")
	})

	t.Run("today is allowed", func(t *testing.T) {
		_, err := h.svc.Create(ctx, user1, slot(h.clock.Date(0), "07:00", "08:00"))
		assert.NoError(t, err)
	})
}

func fieldNames(r ValidationResult) []string {
	out := make([]string, 0, len(r.Errors))
	for _, fe := range r.Errors {
		out = append(out, fe.Field)
	}
	return out
}

func TestUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	created, err := h.svc.Create(ctx, user1, slot("2025-06-05", "10:00", "11:00"))
	require.NoError(t, err)

	in := slot("2025-06-05", "10:00", "11:30")
	h.clock.Advance(time.Minute)
	first, err := h.svc.Update(ctx, user1, created.ID, in)
	require.NoError(t, err, "a reservation never conflicts with itself")
	h.clock.Advance(time.Minute)
	second, err := h.svc.Update(ctx, user1, created.ID, in)
	require.NoError(t, err)

	assert.Equal(t, 1, h.store.Len())
	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
	assert.Equal(t, created.CreatedAt, second.CreatedAt)
}

func TestUpdateChecksPermissionBeforeValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	created, err := h.svc.Create(ctx, user2, slot("2025-06-05", "10:00", "11:00"))
	require.NoError(t, err)
	queries := h.store.OverlapQueries

	_, err = h.svc.Update(ctx, user1, created.ID, ReservationFields{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, queries, h.store.OverlapQueries)
}

func TestUpdateRejectsConflictAndKeepsRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, err := h.svc.Create(ctx, user1, slot("2025-06-05", "10:00", "11:00"))
	require.NoError(t, err)
	b, err := h.svc.Create(ctx, user1, slot("2025-06-05", "11:00", "12:00"))
	require.NoError(t, err)

	_, err = h.svc.Update(ctx, user1, b.ID, slot("2025-06-05", "10:30", "12:00"))
	assert.Contains(t, validationFields(t, err), "time_conflict")

	got, err := h.svc.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	_ = a
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.svc.Update(ctx, admin, "0000000000000bad", slot("2025-06-05", "10:00", "11:00"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.svc.Delete(ctx, admin, "0000000000000bad"), ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	own, err := h.svc.Create(ctx, user1, slot("2025-06-05", "10:00", "11:00"))
	require.NoError(t, err)
	other, err := h.svc.Create(ctx, user2, slot("2025-06-05", "12:00", "13:00"))
	require.NoError(t, err)

	require.NoError(t, h.svc.Delete(ctx, user1, own.ID))
	require.NoError(t, h.svc.Delete(ctx, manager, other.ID))
	assert.Equal(t, 0, h.store.Len())
}

func TestCreateRetriesIDCollisionOnce(t *testing.T) {
	ctx := context.Background()
	existing := model.Reservation{ID: "aaaaaaaaaaaaaaaa", UserID: 2, ReservationDate: "2025-07-01", StartTime: "08:00:00", EndTime: "09:00:00"}

	t.Run("second id succeeds", func(t *testing.T) {
		h := newHarness(t, existing)
		h.ids.Queue(existing.ID)
		r, err := h.svc.Create(ctx, user1, slot("2025-06-05", "10:00", "11:00"))
		require.NoError(t, err)
		assert.Equal(t, "0000000000000001", r.ID)
	})

	t.Run("two collisions fail transiently", func(t *testing.T) {
		h := newHarness(t, existing)
		h.ids.Queue(existing.ID, existing.ID)
		_, err := h.svc.Create(ctx, user1, slot("2025-06-05", "10:00", "11:00"))
		assert.ErrorIs(t, err, ErrTransient)
		assert.Equal(t, 1, h.store.Len())
	})
}

func TestStoreFailureIsTransient(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.store.Err = errors.New("connection reset")

	_, err := h.svc.Create(ctx, user1, slot("2025-06-05", "10:00", "11:00"))
	assert.ErrorIs(t, err, ErrTransient)
	_, err = h.svc.List(ctx, user1)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestRetryableStoreErrorIsTransient(t *testing.T) {
	h := newHarness(t)
	h.store.Err = errors.Join(repository.ErrRetryable, errors.New("deadlock"))
	_, err := h.svc.Create(context.Background(), user1, slot("2025-06-05", "10:00", "11:00"))
	assert.ErrorIs(t, err, ErrTransient)
}

func TestListScopeAndOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	mustCreate := func(id Identity, f ReservationFields) model.Reservation {
		r, err := h.svc.Create(ctx, id, f)
		require.NoError(t, err)
		return r
	}
	c := mustCreate(user1, slot("2025-06-07", "09:00", "10:00"))
	a := mustCreate(user2, slot("2025-06-05", "14:00", "15:00"))
	b := mustCreate(user1, slot("2025-06-05", "08:00", "09:00"))

	all, err := h.svc.List(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID, c.ID}, ids(all))

	own, err := h.svc.List(ctx, user1)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, c.ID}, ids(own))
}

func ids(rs []model.Reservation) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestGetHidesOtherUsersReservations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	r, err := h.svc.Create(ctx, user2, slot("2025-06-05", "10:00", "11:00"))
	require.NoError(t, err)

	_, err = h.svc.Get(ctx, user1, r.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	got, err := h.svc.Get(ctx, manager, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		model.Reservation{ID: "p", UserID: 1, ReservationDate: "2025-05-01", StartTime: "10:00:00", EndTime: "11:00:00"},
		model.Reservation{ID: "t", UserID: 1, ReservationDate: "2025-05-20", StartTime: "10:00:00", EndTime: "11:00:00"},
		model.Reservation{ID: "f", UserID: 2, ReservationDate: "2025-06-20", StartTime: "10:00:00", EndTime: "11:00:00"},
	)

	st, err := h.svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 3, Today: 1, Upcoming: 2}, st)

	st, err = h.svc.Stats(ctx, user1)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 2, Today: 1, Upcoming: 1}, st)
}

func TestListByMonthAndDate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		model.Reservation{ID: "a", UserID: 1, ReservationDate: "2025-05-31", StartTime: "10:00:00", EndTime: "11:00:00"},
		model.Reservation{ID: "b", UserID: 2, ReservationDate: "2025-06-01", StartTime: "10:00:00", EndTime: "11:00:00"},
		model.Reservation{ID: "c", UserID: 1, ReservationDate: "2025-06-30", StartTime: "10:00:00", EndTime: "11:00:00"},
	)

	june, err := h.svc.ListByMonth(ctx, admin, 2025, time.June)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(june))

	mine, err := h.svc.ListByMonth(ctx, user1, 2025, time.June)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(mine))

	_, err = h.svc.ListByMonth(ctx, admin, 2025, 13)
	assert.Contains(t, validationFields(t, err), "month")

	day, err := h.svc.ListByDate(ctx, admin, "2025-6-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(day))
}

func TestExportRequiresRole(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		model.Reservation{ID: "a", UserID: 1, ReservationDate: "2025-05-31", StartTime: "10:00:00", EndTime: "11:00:00"},
		model.Reservation{ID: "b", UserID: 2, ReservationDate: "2025-06-01", StartTime: "10:00:00", EndTime: "11:00:00"},
	)

	_, err := h.svc.Export(ctx, user1, "", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	rows, err := h.svc.Export(ctx, manager, "2025-06-01", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(rows))

	_, err = h.svc.Export(ctx, manager, "June", "")
	assert.Contains(t, validationFields(t, err), "from")
}

func TestUnknownRoleIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ghost := Identity{ID: 5, Role: model.Role("superuser")}

	_, err := h.svc.Create(ctx, ghost, slot("2025-06-05", "10:00", "11:00"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = h.svc.List(ctx, ghost)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 0, h.store.Len())
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	h := newHarness(t)
	h.events.Err = errors.New("broker down")
	_, err := h.svc.Create(context.Background(), user1, slot("2025-06-05", "10:00", "11:00"))
	assert.NoError(t, err)
}

func TestConcurrentOverlappingCreates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Create(ctx, user1, slot("2025-06-10", "10:00", "11:00"))
			mu.Lock()
			defer mu.Unlock()
			var vErr *ValidationError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &vErr):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, h.store.Len())
}
