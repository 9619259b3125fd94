package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/schedule"
)

// ReservationRepo persists reservations in MySQL.  Writes that must be
// checked against existing rows go through Atomically so that the check and
// the write share one transaction and one per-date lock.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationFilter narrows list and count queries.  From and To are
// inclusive dates; empty values leave that side unbounded.
type ReservationFilter struct {
	UserID *uint64
	From   string
	To     string
}

// ReservationTx is the view of the store available inside Atomically.
type ReservationTx interface {
	ExistsOverlap(ctx context.Context, date, start, end, excludeID string) (bool, error)
	Insert(ctx context.Context, r *model.Reservation) error
	Update(ctx context.Context, r *model.Reservation) error
}

const reservationColumns = `id, user_id, user_email, area, responsible, num_people,
	   reservation_date, start_time, end_time, comment, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		r       model.Reservation
		date    time.Time
		comment sql.NullString
	)
	err := s.Scan(&r.ID, &r.UserID, &r.UserEmail, &r.Area, &r.Responsible, &r.NumPeople,
		&date, &r.StartTime, &r.EndTime, &comment, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	r.ReservationDate = date.Format(schedule.DateLayout)
	r.Comment = comment.String
	return r, nil
}

// FindByID loads a single reservation or returns ErrNotFound.
func (r *ReservationRepo) FindByID(ctx context.Context, id string) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? LIMIT 1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

func (f ReservationFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.From != "" {
		conds = append(conds, "reservation_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, "reservation_date <= ?")
		args = append(args, f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns reservations matching f ordered by date then start time.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	where, args := f.where()
	q := `SELECT ` + reservationColumns + ` FROM reservations` + where + ` ORDER BY reservation_date ASC, start_time ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats counts reservations matching f: all of them, those on today and
// those on or after today.
func (r *ReservationRepo) Stats(ctx context.Context, f ReservationFilter, today string) (model.Stats, error) {
	where, args := f.where()
	q := `SELECT COUNT(*),
				 COALESCE(SUM(reservation_date = ?), 0),
				 COALESCE(SUM(reservation_date >= ?), 0)
			FROM reservations` + where
	var s model.Stats
	err := r.db.QueryRowContext(ctx, q, append([]any{today, today}, args...)...).Scan(&s.Total, &s.Today, &s.Upcoming)
	return s, err
}

// Delete removes a reservation.  It returns ErrNotFound when no row matched.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Atomically runs fn inside a transaction that holds an exclusive lock on
// every date in dates.  Locks are taken in sorted order so two transactions
// touching the same pair of dates cannot deadlock each other.  The lock row
// is upserted, which makes the lock work for dates with no reservations yet.
// If fn returns an error the transaction is rolled back.
func (r *ReservationRepo) Atomically(ctx context.Context, dates []string, fn func(ReservationTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, d := range uniqueSorted(dates) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reservation_date_locks (lock_date) VALUES (?)
			 ON DUPLICATE KEY UPDATE lock_date = lock_date`, d); err != nil {
			return fmt.Errorf("lock date %s: %w", d, classify(err))
		}
	}

	if err := fn(&reservationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	committed = true
	return nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type reservationTx struct {
	tx *sql.Tx
}

// ExistsOverlap reports whether any reservation on date intersects
// [start,end).  excludeID, when set, skips the reservation being edited.
func (t *reservationTx) ExistsOverlap(ctx context.Context, date, start, end, excludeID string) (bool, error) {
	q := `SELECT COUNT(*) FROM reservations WHERE reservation_date = ? AND start_time < ? AND end_time > ?`
	args := []any{date, end, start}
	if excludeID != "" {
		q += ` AND id <> ?`
		args = append(args, excludeID)
	}
	var n int
	if err := t.tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// Insert stores a new reservation.  A primary key collision is reported as
// ErrDuplicateID; InnoDB only rolls back the failed statement, so the
// caller may retry inside the same transaction.
func (t *reservationTx) Insert(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations
		(id, user_id, user_email, area, responsible, num_people, reservation_date, start_time, end_time, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q,
		res.ID, res.UserID, res.UserEmail, res.Area, res.Responsible, res.NumPeople,
		res.ReservationDate, res.StartTime, res.EndTime, nullString(res.Comment), res.CreatedAt, res.UpdatedAt)
	if isDuplicate(err) {
		return ErrDuplicateID
	}
	return classify(err)
}

// Update overwrites the editable columns of an existing reservation.
// Ownership columns and created_at are never touched.
func (t *reservationTx) Update(ctx context.Context, res *model.Reservation) error {
	const q = `UPDATE reservations
		   SET area = ?, responsible = ?, num_people = ?, reservation_date = ?,
			   start_time = ?, end_time = ?, comment = ?, updated_at = ?
		 WHERE id = ?`
	out, err := t.tx.ExecContext(ctx, q,
		res.Area, res.Responsible, res.NumPeople, res.ReservationDate,
		res.StartTime, res.EndTime, nullString(res.Comment), res.UpdatedAt, res.ID)
	if err != nil {
		return classify(err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
