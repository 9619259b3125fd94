package testfixtures

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
)

// UserStore is an in-memory user table with unique emails.
type UserStore struct {
	mu     sync.Mutex
	users  map[uint64]model.User
	nextID uint64
}

// NewUserStore returns a store preloaded with users.  New ids start above
// the largest preloaded one.
func NewUserStore(users ...model.User) *UserStore {
	s := &UserStore{users: map[uint64]model.User{}, nextID: 1}
	for _, u := range users {
		s.users[u.ID] = u
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
	}
	return s
}

func (s *UserStore) emailTaken(email string, except uint64) bool {
	for id, u := range s.users {
		if id != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *UserStore) Create(_ context.Context, email, hash string, role model.Role) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(email, 0) {
		return 0, repository.ErrEmailExists
	}
	id := s.nextID
	s.nextID++
	now := time.Now()
	s.users[id] = model.User{ID: id, Email: email, PasswordHash: hash, Role: role, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (s *UserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *UserStore) List(context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *UserStore) Update(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.emailTaken(u.Email, u.ID) {
		return repository.ErrEmailExists
	}
	s.users[u.ID] = u
	return nil
}

func (s *UserStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *UserStore) CountByRole(context.Context) (map[model.Role]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[model.Role]int{}
	for _, u := range s.users {
		out[u.Role]++
	}
	return out, nil
}

// TokenStore keeps refresh token hashes in memory.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]token
}

type token struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

func NewTokenStore() *TokenStore { return &TokenStore{tokens: map[string]token{}} }

func (s *TokenStore) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[hash] = token{userID: userID, exp: exp}
	return nil
}

func (s *TokenStore) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return 0, repository.ErrNotFound
	}
	return t.userID, nil
}

func (s *TokenStore) RevokeByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[hash]; ok {
		t.revoked = true
		s.tokens[hash] = t
	}
	return nil
}

func (s *TokenStore) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, t := range s.tokens {
		if t.userID == userID {
			t.revoked = true
			s.tokens[h] = t
		}
	}
	return nil
}

// Active counts live tokens of userID.
func (s *TokenStore) Active(userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.userID == userID && !t.revoked {
			n++
		}
	}
	return n
}

// SettingStore is an in-memory settings table.
type SettingStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewSettingStore() *SettingStore { return &SettingStore{values: map[string]string{}} }

func (s *SettingStore) All(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *SettingStore) SaveAll(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}
