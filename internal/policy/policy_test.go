package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/room-reservation/internal/model"
)

func TestReservationPermissions(t *testing.T) {
	cases := []struct {
		role            model.Role
		owner           bool
		export, listAll bool
		modify, remove  bool
		adminOnly       bool
	}{
		{model.RoleAdmin, false, true, true, true, true, true},
		{model.RoleAdmin, true, true, true, true, true, true},
		{model.RoleManager, false, true, true, true, true, false},
		{model.RoleUser, false, false, false, false, false, false},
		{model.RoleUser, true, false, false, true, true, false},
		{model.Role("root"), true, false, false, true, true, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.export, CanExport(tc.role), "export %s", tc.role)
		assert.Equal(t, tc.listAll, CanListAll(tc.role), "listAll %s", tc.role)
		assert.Equal(t, tc.modify, CanModify(tc.role, tc.owner), "modify %s owner=%v", tc.role, tc.owner)
		assert.Equal(t, tc.remove, CanDelete(tc.role, tc.owner), "delete %s owner=%v", tc.role, tc.owner)
		assert.Equal(t, tc.adminOnly, IsAdminOnly(tc.role), "adminOnly %s", tc.role)
	}
}

func TestCanDeleteUser(t *testing.T) {
	assert.True(t, CanDeleteUser(model.RoleAdmin, 1, 2))
	assert.False(t, CanDeleteUser(model.RoleAdmin, 1, 1), "admins cannot delete themselves")
	assert.False(t, CanDeleteUser(model.RoleManager, 1, 2))
	assert.False(t, CanDeleteUser(model.RoleUser, 1, 2))
}
