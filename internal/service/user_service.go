package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/policy"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/utils"
)

var validate = validator.New()

// ErrInvalidCredentials is returned by Authenticate for an unknown email or
// a wrong password.  The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSelfDelete is returned when an admin tries to delete their own account.
var ErrSelfDelete = fmt.Errorf("%w: cannot delete your own account", ErrPermissionDenied)

// UserStore captures the persistence interactions needed by UserService.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string, role model.Role) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, u model.User) error
	Delete(ctx context.Context, id uint64) error
	CountByRole(ctx context.Context) (map[model.Role]int, error)
}

// SessionRevoker drops refresh tokens of a user whose account changed.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// NewUser is the input of Register and Create.
type NewUser struct {
	Email           string
	Password        string
	PasswordConfirm string
	Role            string
}

// UserPatch is a partial update; nil fields are left unchanged.
type UserPatch struct {
	Email    *string
	Password *string
	Role     *string
}

// UserService handles registration, login checks and admin user
// management.
type UserService struct {
	users      UserStore
	sessions   SessionRevoker
	events     EventPublisher
	bcryptCost int
	now        func() time.Time
}

// NewUserService wires dependencies for user operations.  sessions and
// events may be nil.
func NewUserService(users UserStore, sessions SessionRevoker, events EventPublisher, bcryptCost int, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, sessions: sessions, events: events, bcryptCost: bcryptCost, now: now}
}

func checkEmail(res *ValidationResult, email string) {
	if email == "" {
		res.add("email", required("email"))
	} else if err := validate.Var(email, "email"); err != nil {
		res.add("email", "The field email must be a valid email address")
	}
}

func checkPassword(res *ValidationResult, password string) {
	if len(password) < utils.MinPasswordLen {
		res.add("password", fmt.Sprintf("The password must be at least %d characters", utils.MinPasswordLen))
	}
}

// Register creates a self-service account.  The role is always user.
func (s *UserService) Register(ctx context.Context, in NewUser) (model.User, error) {
	email := strings.TrimSpace(in.Email)
	var res ValidationResult
	checkEmail(&res, email)
	checkPassword(&res, in.Password)
	if in.Password != in.PasswordConfirm {
		res.add("password_confirm", "Passwords do not match")
	}
	if !res.OK() {
		return model.User{}, &ValidationError{Result: res}
	}
	return s.create(ctx, 0, email, in.Password, model.RoleUser)
}

// Authenticate checks email and password and returns the user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	if !u.Role.Valid() {
		return model.User{}, fmt.Errorf("%w: unknown role %q", ErrPermissionDenied, u.Role)
	}
	return u, nil
}

// Get returns the user with the given id.
func (s *UserService) Get(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, storeError(err)
	}
	return u, nil
}

// List returns every user.  Admin only.
func (s *UserService) List(ctx context.Context, actor Identity) ([]model.User, error) {
	if !policy.IsAdminOnly(actor.Role) {
		return nil, ErrPermissionDenied
	}
	out, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// CountByRole returns the number of users per role.  Admin only.
func (s *UserService) CountByRole(ctx context.Context, actor Identity) (map[model.Role]int, error) {
	if !policy.IsAdminOnly(actor.Role) {
		return nil, ErrPermissionDenied
	}
	return s.users.CountByRole(ctx)
}

// Create adds an account with an explicit role.  Admin only; unknown roles
// are rejected.
func (s *UserService) Create(ctx context.Context, actor Identity, in NewUser) (model.User, error) {
	if !policy.IsAdminOnly(actor.Role) {
		return model.User{}, ErrPermissionDenied
	}
	email := strings.TrimSpace(in.Email)
	var res ValidationResult
	checkEmail(&res, email)
	checkPassword(&res, in.Password)
	role, err := model.ParseRole(in.Role)
	if err != nil {
		res.add("role", "The field role must be one of admin, manager, user")
	}
	if !res.OK() {
		return model.User{}, &ValidationError{Result: res}
	}
	return s.create(ctx, actor.ID, email, in.Password, role)
}

func (s *UserService) create(ctx context.Context, actorID uint64, email, password string, role model.Role) (model.User, error) {
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.users.Create(ctx, email, hash, role)
	if errors.Is(err, repository.ErrEmailExists) {
		return model.User{}, fieldError("email", "The email is already registered")
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	now := s.now()
	u := model.User{ID: id, Email: email, PasswordHash: hash, Role: role, CreatedAt: now, UpdatedAt: now}
	if actorID == 0 {
		actorID = id
	}
	s.publish(ctx, queue.ActionUserCreated, actorID, u)
	return u, nil
}

// Update applies p to user targetID.  Admin only.  A role or password
// change revokes the user's refresh tokens.
func (s *UserService) Update(ctx context.Context, actor Identity, targetID uint64, p UserPatch) (model.User, error) {
	if !policy.IsAdminOnly(actor.Role) {
		return model.User{}, ErrPermissionDenied
	}
	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return model.User{}, storeError(err)
	}

	var res ValidationResult
	revoke := false
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		checkEmail(&res, email)
		u.Email = email
	}
	if p.Role != nil {
		role, err := model.ParseRole(*p.Role)
		if err != nil {
			res.add("role", "The field role must be one of admin, manager, user")
		} else if role != u.Role {
			if targetID == actor.ID && role != model.RoleAdmin {
				res.add("role", "You cannot remove your own admin role")
			}
			u.Role = role
			revoke = true
		}
	}
	if p.Password != nil && *p.Password != "" {
		checkPassword(&res, *p.Password)
		if res.OK() {
			hash, err := utils.HashPassword(*p.Password, s.bcryptCost)
			if err != nil {
				return model.User{}, fmt.Errorf("hash password: %w", err)
			}
			u.PasswordHash = hash
			revoke = true
		}
	}
	if !res.OK() {
		return model.User{}, &ValidationError{Result: res}
	}

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, fieldError("email", "The email is already registered")
		}
		return model.User{}, storeError(err)
	}
	u.UpdatedAt = s.now()
	if revoke {
		s.revoke(ctx, u.ID)
	}
	s.publish(ctx, queue.ActionUserUpdated, actor.ID, u)
	return u, nil
}

// Delete removes user targetID.  Admins cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, actor Identity, targetID uint64) error {
	if !policy.IsAdminOnly(actor.Role) {
		return ErrPermissionDenied
	}
	if !policy.CanDeleteUser(actor.Role, actor.ID, targetID) {
		return ErrSelfDelete
	}
	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return storeError(err)
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		return storeError(err)
	}
	s.revoke(ctx, targetID)
	s.publish(ctx, queue.ActionUserDeleted, actor.ID, u)
	return nil
}

func (s *UserService) revoke(ctx context.Context, userID uint64) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		log.Warn().Err(err).Uint64("user_id", userID).Msg("revoke sessions failed")
	}
}

func (s *UserService) publish(ctx context.Context, action string, actorID uint64, u model.User) {
	if s.events == nil {
		return
	}
	details := map[string]any{"email": u.Email, "role": u.Role}
	ev := queue.NewEvent(ctx, action, "user", fmt.Sprint(u.ID), actorID, details, s.now())
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("action", action).Uint64("user_id", u.ID).Msg("publish event failed")
	}
}
