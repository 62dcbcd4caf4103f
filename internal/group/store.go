package group

import (
	"context"
	"time"

	"github.com/bwise1/outpost/internal/model"
	"github.com/google/uuid"
)

// Queries is every read and write the service performs. Lookups of a single
// row return the matching sentinel error (ErrGroupNotFound, ErrNotMember,
// ErrUserNotFound, ErrLocationNotFound) when the row is missing.
type Queries interface {
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	InsertGroup(ctx context.Context, g *model.Group) error
	GetGroup(ctx context.Context, groupID uuid.UUID) (model.Group, error)
	LockGroup(ctx context.Context, groupID uuid.UUID) (model.Group, error)
	LockGroupByCode(ctx context.Context, code string) (model.Group, error)
	DeleteGroup(ctx context.Context, groupID uuid.UUID) error
	ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]model.Group, error)

	InsertMember(ctx context.Context, m model.GroupMember) error
	MemberRole(ctx context.Context, groupID, userID uuid.UUID) (model.Role, error)
	CountMembers(ctx context.Context, groupID uuid.UUID) (int, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]model.GroupMember, error)
	MemberIDs(ctx context.Context, groupID uuid.UUID, roles ...model.Role) ([]uuid.UUID, error)
	DeleteMember(ctx context.Context, groupID, userID uuid.UUID) error
	UpdateMemberRole(ctx context.Context, groupID, userID uuid.UUID, role model.Role) error
	TouchMember(ctx context.Context, groupID, userID uuid.UUID) error

	Username(ctx context.Context, userID uuid.UUID) (string, error)

	HasActiveBan(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	InsertBan(ctx context.Context, b model.GroupBan) error
	LiftBan(ctx context.Context, groupID, userID, liftedBy uuid.UUID) (bool, error)
	ListBans(ctx context.Context, groupID uuid.UUID) ([]model.GroupBan, error)
	InsertAdminAction(ctx context.Context, groupID, adminID uuid.UUID, target *uuid.UUID, action model.AdminAction, reason string) error

	InsertMessage(ctx context.Context, m *model.GroupMessage) error
	// ListMessages returns up to limit messages created before the cursor,
	// newest first.
	ListMessages(ctx context.Context, groupID uuid.UUID, before *time.Time, limit int) ([]model.GroupMessage, error)
	MessageInGroup(ctx context.Context, groupID, messageID uuid.UUID) (bool, error)
	// ToggleMessageLike removes the user's like if present and adds it
	// otherwise, reporting whether the message is now liked.
	ToggleMessageLike(ctx context.Context, messageID, userID uuid.UUID) (bool, error)
	MessageLikeCount(ctx context.Context, messageID uuid.UUID) (int, error)

	LocationTitle(ctx context.Context, locationID uuid.UUID) (string, error)
	LocationShared(ctx context.Context, groupID, locationID uuid.UUID) (bool, error)
	InsertGroupLocation(ctx context.Context, gl *model.GroupLocation) error
	ListGroupLocations(ctx context.Context, groupID uuid.UUID) ([]model.GroupLocation, error)
}

// Store runs Queries directly or inside one transaction. WithTx commits when fn
// returns nil and rolls back otherwise.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
