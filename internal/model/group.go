package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageLocation MessageType = "location"
	MessageImage    MessageType = "image"
	MessageSystem   MessageType = "system"
)

type Group struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	InviteCode  string    `json:"invite_code"`
	CreatedBy   uuid.UUID `json:"created_by"`
	IsPrivate   bool      `json:"is_private"`
	MemberLimit int       `json:"member_limit"`
	AvatarColor string    `json:"avatar_color"`
	Emoji       string    `json:"emoji"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	MemberCount int       `json:"member_count"`
	MyRole      Role      `json:"my_role,omitempty"`
}

type GroupMember struct {
	GroupID      uuid.UUID `json:"group_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	Role         Role      `json:"role"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type GroupMessage struct {
	ID            uuid.UUID     `json:"id"`
	GroupID       uuid.UUID     `json:"group_id"`
	UserID        uuid.UUID     `json:"user_id"`
	Username      string        `json:"username,omitempty"`
	MessageType   MessageType   `json:"message_type"`
	Content       string        `json:"content"`
	LocationID    *uuid.UUID    `json:"location_id,omitempty"`
	LocationTitle *string       `json:"location_title,omitempty"`
	Latitude      *float64      `json:"latitude,omitempty"`
	Longitude     *float64      `json:"longitude,omitempty"`
	ReplyToID     *uuid.UUID    `json:"reply_to_id,omitempty"`
	ReplyTo       *MessageReply `json:"reply_to,omitempty"`
	LikeCount     int           `json:"like_count"`
	CreatedAt     time.Time     `json:"created_at"`
}

type MessageLikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// MessageReply is the single level of parent context shown under a reply.
type MessageReply struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Content  string    `json:"content"`
}

type GroupLocation struct {
	ID         uuid.UUID `json:"id"`
	GroupID    uuid.UUID `json:"group_id"`
	LocationID uuid.UUID `json:"location_id"`
	SharedBy   uuid.UUID `json:"shared_by"`
	Notes      string    `json:"notes"`
	IsPinned   bool      `json:"is_pinned"`
	CreatedAt  time.Time `json:"created_at"`
	Title      string    `json:"title,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
}

type GroupLocationsResponse struct {
	Locations []GroupLocation `json:"locations"`
	Path      string          `json:"path"`
}

type GroupBan struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"group_id"`
	UserID    uuid.UUID `json:"user_id"`
	BannedBy  uuid.UUID `json:"banned_by"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminAction string

const (
	ActionKick    AdminAction = "kick"
	ActionBan     AdminAction = "ban"
	ActionUnban   AdminAction = "unban"
	ActionPromote AdminAction = "promote"
	ActionDemote  AdminAction = "demote"
	ActionDelete  AdminAction = "delete"
)

type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsPrivate   bool   `json:"is_private"`
	MemberLimit int    `json:"member_limit" validate:"omitempty,gte=2,lte=500"`
	AvatarColor string `json:"avatar_color" validate:"omitempty,hexcolor"`
	Emoji       string `json:"emoji" validate:"max=16"`
}

type JoinGroupRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

type SendMessageRequest struct {
	MessageType MessageType `json:"message_type" validate:"omitempty,oneof=text location image"`
	Content     string      `json:"content" validate:"max=4000"`
	LocationID  *uuid.UUID  `json:"location_id"`
	ReplyToID   *uuid.UUID  `json:"reply_to_id"`
}

type ListMessagesParams struct {
	Limit  int        `schema:"limit" validate:"gte=1,lte=100"`
	Before *time.Time `schema:"before"`
}

type ShareLocationRequest struct {
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	Notes      string    `json:"notes" validate:"max=1000"`
	IsPinned   bool      `json:"is_pinned"`
}

type ModerationRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Reason string    `json:"reason" validate:"max=500"`
}

type ChangeRoleRequest struct {
	UserID  uuid.UUID `json:"user_id" validate:"required"`
	NewRole Role      `json:"new_role" validate:"required,oneof=member admin"`
}
