package testfixtures

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/schedule"
)

// ReservationStore is an in-memory store with the same contract as the
// MySQL one.  Atomically holds a single mutex, which is a stricter form of
// the per-date lock.  Failed transactions are rolled back from a snapshot.
type ReservationStore struct {
	mu   sync.Mutex
	rows map[string]model.Reservation

	// Err, when set, is returned by every query.
	Err error
	// OverlapQueries counts ExistsOverlap calls.
	OverlapQueries int
}

// NewReservationStore returns an empty store preloaded with rows.
func NewReservationStore(rows ...model.Reservation) *ReservationStore {
	s := &ReservationStore{rows: map[string]model.Reservation{}}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

// Len returns the number of stored reservations.
func (s *ReservationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *ReservationStore) FindByID(_ context.Context, id string) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.Reservation{}, s.Err
	}
	r, ok := s.rows[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func matches(f repository.ReservationFilter, r model.Reservation) bool {
	if f.UserID != nil && r.UserID != *f.UserID {
		return false
	}
	if f.From != "" && r.ReservationDate < f.From {
		return false
	}
	if f.To != "" && r.ReservationDate > f.To {
		return false
	}
	return true
}

func (s *ReservationStore) List(_ context.Context, f repository.ReservationFilter) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.Reservation, 0)
	for _, r := range s.rows {
		if matches(f, r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservationDate != out[j].ReservationDate {
			return out[i].ReservationDate < out[j].ReservationDate
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (s *ReservationStore) Stats(_ context.Context, f repository.ReservationFilter, today string) (model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.Stats{}, s.Err
	}
	var st model.Stats
	for _, r := range s.rows {
		if !matches(f, r) {
			continue
		}
		st.Total++
		if r.ReservationDate == today {
			st.Today++
		}
		if r.ReservationDate >= today {
			st.Upcoming++
		}
	}
	return st, nil
}

func (s *ReservationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *ReservationStore) Atomically(_ context.Context, _ []string, fn func(repository.ReservationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	snapshot := make(map[string]model.Reservation, len(s.rows))
	for k, v := range s.rows {
		snapshot[k] = v
	}
	if err := fn(memTx{s}); err != nil {
		s.rows = snapshot
		return err
	}
	return nil
}

// memTx runs with the store mutex already held.
type memTx struct{ s *ReservationStore }

func (t memTx) ExistsOverlap(_ context.Context, date, start, end, excludeID string) (bool, error) {
	t.s.OverlapQueries++
	for _, r := range t.s.rows {
		if r.ReservationDate != date || (excludeID != "" && r.ID == excludeID) {
			continue
		}
		if schedule.Overlaps(start, end, r.StartTime, r.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

func (t memTx) Insert(_ context.Context, r *model.Reservation) error {
	if _, ok := t.s.rows[r.ID]; ok {
		return repository.ErrDuplicateID
	}
	t.s.rows[r.ID] = *r
	return nil
}

func (t memTx) Update(_ context.Context, r *model.Reservation) error {
	if _, ok := t.s.rows[r.ID]; !ok {
		return repository.ErrNotFound
	}
	t.s.rows[r.ID] = *r
	return nil
}

// Publisher records the actions of published events.
type Publisher struct {
	mu      sync.Mutex
	Actions []string
	Err     error
}

func (p *Publisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Actions = append(p.Actions, ev.Action)
	return p.Err
}
