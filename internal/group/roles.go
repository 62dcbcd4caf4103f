package group

import "github.com/bwise1/outpost/internal/model"

// RoleNone stands for a user with no membership row.
const RoleNone model.Role = ""

func rank(r model.Role) int {
	switch r {
	case model.RoleOwner:
		return 3
	case model.RoleAdmin:
		return 2
	case model.RoleMember:
		return 1
	default:
		return 0
	}
}

// IsStaff reports whether r may moderate the group.
func IsStaff(r model.Role) bool {
	return rank(r) >= rank(model.RoleAdmin)
}

// CanKick: owners act on admins and members, admins act on members, nobody
// acts on the owner.
func CanKick(actor, target model.Role) bool {
	return IsStaff(actor) && rank(target) >= rank(model.RoleMember) && rank(actor) > rank(target)
}

// CanBan follows CanKick, and additionally lets staff ban users that are not
// members yet.
func CanBan(actor, target model.Role) bool {
	if target == RoleNone {
		return IsStaff(actor)
	}
	return CanKick(actor, target)
}

// CanPromote allows only the owner to move a user between admin and member.
func CanPromote(actor, target, newRole model.Role) bool {
	if actor != model.RoleOwner {
		return false
	}
	if target != model.RoleAdmin && target != model.RoleMember {
		return false
	}
	return newRole == model.RoleAdmin || newRole == model.RoleMember
}
