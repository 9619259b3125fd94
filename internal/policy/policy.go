// Package policy decides who may do what with reservations and users.
// Every function is pure: callers pass the role and ownership facts.
package policy

import "github.com/iliyamo/room-reservation/internal/model"

func privileged(role model.Role) bool {
	return role == model.RoleAdmin || role == model.RoleManager
}

// CanExport reports whether role may download reservation exports.
func CanExport(role model.Role) bool { return privileged(role) }

// CanListAll reports whether role sees every reservation instead of only
// its own.
func CanListAll(role model.Role) bool { return privileged(role) }

// CanModify reports whether role may edit a reservation.
func CanModify(role model.Role, isOwner bool) bool { return privileged(role) || isOwner }

// CanDelete reports whether role may remove a reservation.
func CanDelete(role model.Role, isOwner bool) bool { return privileged(role) || isOwner }

// IsAdminOnly gates user management and branding settings.
func IsAdminOnly(role model.Role) bool { return role == model.RoleAdmin }

// CanDeleteUser applies to user management only: admins may delete any
// account except their own.
func CanDeleteUser(role model.Role, actorID, targetID uint64) bool {
	return IsAdminOnly(role) && actorID != targetID
}
