package model

import (
	"errors"
	"strings"
	"time"
)

// Role is the authorization level of a user.  Only the three values below
// are stored in the `users.role` column; anything else is rejected before it
// reaches the database.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ErrInvalidRole is returned by ParseRole for unknown role names.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalises s and returns the matching Role.  Unknown values are
// rejected instead of silently downgraded to RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleUser:
		return RoleUser, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// User represents an application user record as stored in the
// `users` table.  The password hash never leaves the repository and
// handler layers; responses use dedicated DTOs.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – admin, manager or user.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the token value is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
