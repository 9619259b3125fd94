package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/testfixtures"
	"github.com/iliyamo/room-reservation/internal/utils"
)

// ── In-memory user store ──────────────────────────────────────────────────────
// Emails compare case-insensitively like the users.email collation.

type stubUserStore struct {
	users  map[uint64]model.User
	nextID uint64
}

func newStubUserStore(users ...model.User) *stubUserStore {
	s := &stubUserStore{users: map[uint64]model.User{}, nextID: 100}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUserStore) Create(_ context.Context, email, hash string, role model.Role) (uint64, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return 0, repository.ErrEmailExists
		}
	}
	s.nextID++
	s.users[s.nextID] = model.User{ID: s.nextID, Email: email, PasswordHash: hash, Role: role}
	return s.nextID, nil
}

func (s *stubUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *stubUserStore) List(_ context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *stubUserStore) Update(_ context.Context, u model.User) error {
	if _, ok := s.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, other := range s.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return repository.ErrEmailExists
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *stubUserStore) Delete(_ context.Context, id uint64) error {
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *stubUserStore) CountByRole(_ context.Context) (map[model.Role]int, error) {
	out := map[model.Role]int{}
	for _, u := range s.users {
		out[u.Role]++
	}
	return out, nil
}

type stubRevoker struct{ revoked []uint64 }

func (r *stubRevoker) RevokeAllForUser(_ context.Context, id uint64) error {
	r.revoked = append(r.revoked, id)
	return nil
}

func newUserService(users ...model.User) (*UserService, *stubUserStore, *stubRevoker, *testfixtures.Publisher) {
	store := newStubUserStore(users...)
	rev := &stubRevoker{}
	pub := &testfixtures.Publisher{}
	return NewUserService(store, rev, pub, 4, testfixtures.NewClock(testfixtures.ReferenceTime()).Now), store, rev, pub
}

func TestRegisterAlwaysCreatesPlainUser(t *testing.T) {
	svc, store, _, pub := newUserService()
	u, err := svc.Register(context.Background(), NewUser{
		Email: " New@Example.com ", Password: "secret1", PasswordConfirm: "secret1", Role: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, "New@Example.com", u.Email)
	assert.Equal(t, "New@Example.com", store.users[u.ID].Email)
	assert.True(t, utils.VerifyPassword(store.users[u.ID].PasswordHash, "secret1"))
	assert.Equal(t, []string{"user.created"}, pub.Actions)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newUserService(model.User{ID: 1, Email: "taken@example.com", Role: model.RoleUser})
	ctx := context.Background()

	_, err := svc.Register(ctx, NewUser{Email: "not-an-email", Password: "123", PasswordConfirm: "124"})
	fields := validationFields(t, err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "password_confirm")

	_, err = svc.Register(ctx, NewUser{Email: "taken@example.com", Password: "secret1", PasswordConfirm: "secret1"})
	assert.Contains(t, validationFields(t, err), "email")

	_, err = svc.Register(ctx, NewUser{Email: "Taken@Example.COM", Password: "secret1", PasswordConfirm: "secret1"})
	assert.Contains(t, validationFields(t, err), "email")
}

func TestEmailCaseIsStoredAsGiven(t *testing.T) {
	svc, store, _, _ := newUserService(model.User{ID: 1, Email: "admin@example.com", Role: model.RoleAdmin})
	ctx := context.Background()
	actor := Identity{ID: 1, Role: model.RoleAdmin, Email: "admin@example.com"}

	u, err := svc.Register(ctx, NewUser{Email: "Alice@Example.COM", Password: "secret1", PasswordConfirm: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice@Example.COM", store.users[u.ID].Email)

	created, err := svc.Create(ctx, actor, NewUser{Email: " Bob@Example.com ", Password: "secret1", Role: "manager"})
	require.NoError(t, err)
	assert.Equal(t, "Bob@Example.com", store.users[created.ID].Email)

	email := "BOB@example.com"
	updated, err := svc.Update(ctx, actor, created.ID, UserPatch{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "BOB@example.com", store.users[updated.ID].Email)

	// login matches regardless of case
	_, err = svc.Authenticate(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	hash, err := utils.HashPassword("secret1", 4)
	require.NoError(t, err)
	svc, _, _, _ := newUserService(model.User{ID: 1, Email: "a@example.com", PasswordHash: hash, Role: model.RoleManager})
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, u.Role)

	_, err = svc.Authenticate(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "b@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminCreateRejectsUnknownRole(t *testing.T) {
	svc, store, _, _ := newUserService()
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, NewUser{Email: "x@example.com", Password: "secret1", Role: "owner"})
	assert.Contains(t, validationFields(t, err), "role")
	assert.Empty(t, store.users)

	u, err := svc.Create(ctx, admin, NewUser{Email: "x@example.com", Password: "secret1", Role: "Manager"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, u.Role)

	_, err = svc.Create(ctx, manager, NewUser{Email: "y@example.com", Password: "secret1", Role: "user"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestAdminUpdateUser(t *testing.T) {
	svc, store, rev, _ := newUserService(
		model.User{ID: 9, Email: "admin@example.com", Role: model.RoleAdmin},
		model.User{ID: 2, Email: "two@example.com", Role: model.RoleUser},
	)
	ctx := context.Background()
	role := "manager"
	u, err := svc.Update(ctx, admin, 2, UserPatch{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, u.Role)
	assert.Equal(t, []uint64{2}, rev.revoked)

	bad := "owner"
	_, err = svc.Update(ctx, admin, 2, UserPatch{Role: &bad})
	assert.Contains(t, validationFields(t, err), "role")
	assert.Equal(t, model.RoleManager, store.users[2].Role, "invalid role leaves the user unchanged")

	demote := "user"
	_, err = svc.Update(ctx, admin, 9, UserPatch{Role: &demote})
	assert.Contains(t, validationFields(t, err), "role")

	taken := "admin@example.com"
	_, err = svc.Update(ctx, admin, 2, UserPatch{Email: &taken})
	assert.Contains(t, validationFields(t, err), "email")

	_, err = svc.Update(ctx, admin, 77, UserPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUserGuardsSelf(t *testing.T) {
	svc, store, rev, pub := newUserService(
		model.User{ID: 9, Email: "admin@example.com", Role: model.RoleAdmin},
		model.User{ID: 2, Email: "two@example.com", Role: model.RoleUser},
	)
	ctx := context.Background()

	err := svc.Delete(ctx, admin, 9)
	assert.ErrorIs(t, err, ErrSelfDelete)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Len(t, store.users, 2)

	require.NoError(t, svc.Delete(ctx, admin, 2))
	assert.Len(t, store.users, 1)
	assert.Equal(t, []uint64{2}, rev.revoked)
	assert.Equal(t, []string{"user.deleted"}, pub.Actions)

	assert.ErrorIs(t, svc.Delete(ctx, admin, 2), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, user1, 9), ErrPermissionDenied)
}

func TestCountByRole(t *testing.T) {
	svc, _, _, _ := newUserService(
		model.User{ID: 9, Email: "admin@example.com", Role: model.RoleAdmin},
		model.User{ID: 2, Email: "two@example.com", Role: model.RoleUser},
		model.User{ID: 3, Email: "three@example.com", Role: model.RoleUser},
	)
	counts, err := svc.CountByRole(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, map[model.Role]int{model.RoleAdmin: 1, model.RoleUser: 2}, counts)
}
