package group

import "errors"

// Domain errors returned by Service. Anything else is an infrastructure failure.
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrInvalidInviteCode   = errors.New("invalid invite code")
	ErrAlreadyMember       = errors.New("you are already a member of this group")
	ErrGroupFull           = errors.New("group is full")
	ErrNotMember           = errors.New("you are not a member of this group")
	ErrOwnerCannotLeave    = errors.New("group owner cannot leave while there are other members")
	ErrBanned              = errors.New("you are banned from this group")
	ErrForbidden           = errors.New("insufficient group permissions")
	ErrUserNotFound        = errors.New("user not found")
	ErrTargetNotMember     = errors.New("user is not a member of this group")
	ErrSelfAction          = errors.New("you cannot perform this action on yourself")
	ErrAlreadyBanned       = errors.New("user is already banned")
	ErrNotBanned           = errors.New("user is not banned from this group")
	ErrInvalidRole         = errors.New("role must be admin or member")
	ErrRoleUnchanged       = errors.New("user already has this role")
	ErrLocationNotFound    = errors.New("location not found")
	ErrAlreadyShared       = errors.New("location already shared in this group")
	ErrReplyNotFound       = errors.New("reply target not found in this group")
	ErrMessageNotFound     = errors.New("message not found in this group")
	ErrEmptyContent        = errors.New("message content is required")
	ErrInvalidMessageType  = errors.New("message type must be text, location or image")
	ErrCodeExhausted       = errors.New("could not generate a unique invite code")
	ErrInviteCodeCollision = errors.New("invite code already taken")
)
