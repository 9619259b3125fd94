package service

import (
	"fmt"

	"github.com/iliyamo/room-reservation/internal/model"
)

// Identity is the authenticated caller of a service operation.  It is built
// by the transport layer and passed explicitly; services never look it up.
type Identity struct {
	ID    uint64
	Role  model.Role
	Email string
}

// SystemIdentity is used by maintenance jobs that run without a user, such
// as the scheduled export.
var SystemIdentity = Identity{ID: 0, Role: model.RoleAdmin, Email: "system@localhost"}

// check rejects identities carrying a role outside the known set.
func (id Identity) check() error {
	if !id.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrPermissionDenied, id.Role)
	}
	return nil
}

// owns reports whether id created r.
func (id Identity) owns(r model.Reservation) bool {
	return id.ID != 0 && r.UserID == id.ID
}
