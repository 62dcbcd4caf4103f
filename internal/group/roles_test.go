package group

import (
	"testing"

	"github.com/bwise1/outpost/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRoleMatrix(t *testing.T) {
	owner, admin, member := model.RoleOwner, model.RoleAdmin, model.RoleMember

	testCases := []struct {
		actor, target model.Role
		want          bool
	}{
		{owner, owner, false},
		{owner, admin, true},
		{owner, member, true},
		{admin, owner, false},
		{admin, admin, false},
		{admin, member, true},
		{member, owner, false},
		{member, admin, false},
		{member, member, false},
		{RoleNone, member, false},
		{owner, RoleNone, false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, CanKick(tc.actor, tc.target), "kick %q -> %q", tc.actor, tc.target)
		if tc.target != RoleNone {
			assert.Equal(t, tc.want, CanBan(tc.actor, tc.target), "ban %q -> %q", tc.actor, tc.target)
		}
	}
}

func TestCanBanNonMember(t *testing.T) {
	assert.True(t, CanBan(model.RoleOwner, RoleNone))
	assert.True(t, CanBan(model.RoleAdmin, RoleNone))
	assert.False(t, CanBan(model.RoleMember, RoleNone))
	assert.False(t, CanBan(RoleNone, RoleNone))
}

func TestCanPromote(t *testing.T) {
	owner, admin, member := model.RoleOwner, model.RoleAdmin, model.RoleMember

	assert.True(t, CanPromote(owner, member, admin))
	assert.True(t, CanPromote(owner, admin, member))
	assert.False(t, CanPromote(owner, member, owner), "nobody is promoted to owner")
	assert.False(t, CanPromote(owner, owner, member), "the owner is never demoted")
	assert.False(t, CanPromote(admin, member, admin), "admins cannot promote")
	assert.False(t, CanPromote(member, member, admin))
	assert.False(t, CanPromote(owner, RoleNone, admin))
}
