package group

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwise1/outpost/internal/events"
	"github.com/bwise1/outpost/internal/metrics"
	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMemberLimit  = 50
	DefaultAvatarColor  = "#7289DA"
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100

	createAttempts = 3
)

type Service struct {
	store        Store
	notify       events.BestEffort
	codeAttempts int
	now          func() time.Time
}

type Option func(*Service)

func WithCodeAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.codeAttempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, notify events.BestEffort, opts ...Option) *Service {
	if notify == nil {
		notify = events.Discard
	}
	s := &Service{
		store:        store,
		notify:       notify,
		codeAttempts: DefaultCodeAttempts,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) systemMessage(ctx context.Context, q Queries, groupID, userID uuid.UUID, content string) (model.GroupMessage, error) {
	msg := model.GroupMessage{
		ID:          uuid.New(),
		GroupID:     groupID,
		UserID:      userID,
		MessageType: model.MessageSystem,
		Content:     content,
	}
	if err := q.InsertMessage(ctx, &msg); err != nil {
		return model.GroupMessage{}, err
	}
	return msg, nil
}

// Create issues a unique invite code and stores the group with its creator as
// owner in one transaction.
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, req model.CreateGroupRequest) (g model.Group, err error) {
	defer func() { metrics.RecordGroupOperation("create", err) }()

	g = model.Group{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   creatorID,
		IsPrivate:   req.IsPrivate,
		MemberLimit: req.MemberLimit,
		AvatarColor: req.AvatarColor,
		Emoji:       req.Emoji,
	}
	if g.MemberLimit == 0 {
		g.MemberLimit = DefaultMemberLimit
	}
	if g.AvatarColor == "" {
		g.AvatarColor = DefaultAvatarColor
	}

	// a concurrent create can take the same code between the check and the insert
	for attempt := 0; attempt < createAttempts; attempt++ {
		err = s.store.WithTx(ctx, func(q Queries) error {
			code, err := GenerateUniqueCode(ctx, q.InviteCodeExists, s.codeAttempts)
			if err != nil {
				return err
			}
			g.ID = uuid.New()
			g.InviteCode = code
			if err := q.InsertGroup(ctx, &g); err != nil {
				return err
			}
			return q.InsertMember(ctx, model.GroupMember{
				GroupID:  g.ID,
				UserID:   creatorID,
				Role:     model.RoleOwner,
				JoinedAt: s.now(),
			})
		})
		if !errors.Is(err, ErrInviteCodeCollision) {
			break
		}
	}
	if errors.Is(err, ErrInviteCodeCollision) {
		err = ErrCodeExhausted
	}
	if err != nil {
		return model.Group{}, err
	}

	g.MemberCount = 1
	g.MyRole = model.RoleOwner
	return g, nil
}

// JoinByCode adds userID to the group behind rawCode. The group row stays
// locked for the whole transaction so the capacity check and the insert see
// the same member count.
func (s *Service) JoinByCode(ctx context.Context, userID uuid.UUID, rawCode string) (g model.Group, err error) {
	defer func() { metrics.RecordGroupOperation("join", err) }()

	code := NormalizeCode(rawCode)
	if !util.IsShortCode(code, CodeLength) {
		return model.Group{}, ErrInvalidInviteCode
	}

	var (
		msg   model.GroupMessage
		staff []uuid.UUID
		name  string
	)
	err = s.store.WithTx(ctx, func(q Queries) error {
		var err error
		g, err = q.LockGroupByCode(ctx, code)
		if errors.Is(err, ErrGroupNotFound) {
			return ErrInvalidInviteCode
		}
		if err != nil {
			return err
		}

		banned, err := q.HasActiveBan(ctx, g.ID, userID)
		if err != nil {
			return err
		}
		if banned {
			return ErrBanned
		}

		if _, err := q.MemberRole(ctx, g.ID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, ErrNotMember) {
			return err
		}

		count, err := q.CountMembers(ctx, g.ID)
		if err != nil {
			return err
		}
		if count >= g.MemberLimit {
			return ErrGroupFull
		}

		if err := q.InsertMember(ctx, model.GroupMember{
			GroupID:  g.ID,
			UserID:   userID,
			Role:     model.RoleMember,
			JoinedAt: s.now(),
		}); err != nil {
			return err
		}
		g.MemberCount = count + 1

		if name, err = q.Username(ctx, userID); err != nil {
			return err
		}
		if msg, err = s.systemMessage(ctx, q, g.ID, userID, "joined the group"); err != nil {
			return err
		}
		staff, err = q.MemberIDs(ctx, g.ID, model.RoleOwner, model.RoleAdmin)
		return err
	})
	if err != nil {
		return model.Group{}, err
	}

	g.MyRole = model.RoleMember
	s.notify(ctx, events.Event{
		Type:       events.MemberJoined,
		GroupID:    g.ID,
		ActorID:    userID,
		Recipients: staff,
		Title:      "New Group Member",
		Message:    fmt.Sprintf("%s joined %s", name, g.Name),
		Data:       map[string]interface{}{"group_name": g.Name, "username": name},
		Payload:    msg,
	})
	return g, nil
}

type LeaveResult struct {
	GroupDeleted bool `json:"group_deleted"`
}

// Leave removes userID from the group. An owner may only leave once every
// other member is gone, and the group is deleted with them.
func (s *Service) Leave(ctx context.Context, groupID, userID uuid.UUID) (res LeaveResult, err error) {
	defer func() { metrics.RecordGroupOperation("leave", err) }()

	var (
		msg   model.GroupMessage
		staff []uuid.UUID
		g     model.Group
		name  string
	)
	err = s.store.WithTx(ctx, func(q Queries) error {
		var err error
		if g, err = q.LockGroup(ctx, groupID); err != nil {
			return err
		}

		role, err := q.MemberRole(ctx, groupID, userID)
		if err != nil {
			return err
		}

		count, err := q.CountMembers(ctx, groupID)
		if err != nil {
			return err
		}

		if role == model.RoleOwner {
			if count > 1 {
				return ErrOwnerCannotLeave
			}
			res.GroupDeleted = true
			return q.DeleteGroup(ctx, groupID)
		}

		if err := q.DeleteMember(ctx, groupID, userID); err != nil {
			return err
		}
		if name, err = q.Username(ctx, userID); err != nil {
			return err
		}
		if msg, err = s.systemMessage(ctx, q, groupID, userID, "left the group"); err != nil {
			return err
		}
		staff, err = q.MemberIDs(ctx, groupID, model.RoleOwner, model.RoleAdmin)
		return err
	})
	if err != nil {
		return LeaveResult{}, err
	}

	if !res.GroupDeleted {
		s.notify(ctx, events.Event{
			Type:       events.MemberLeft,
			GroupID:    groupID,
			ActorID:    userID,
			Recipients: staff,
			Removed:    []uuid.UUID{userID},
			Title:      "Member Left",
			Message:    fmt.Sprintf("%s left %s", name, g.Name),
			Data:       map[string]interface{}{"group_name": g.Name, "username": name},
			Payload:    msg,
		})
	}
	return res, nil
}

// Get returns the group as seen by one of its members.
func (s *Service) Get(ctx context.Context, groupID, userID uuid.UUID) (model.Group, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return model.Group{}, err
	}
	role, err := s.store.MemberRole(ctx, groupID, userID)
	if err != nil {
		return model.Group{}, err
	}
	g.MyRole = role
	return g, nil
}

func (s *Service) Mine(ctx context.Context, userID uuid.UUID) ([]model.Group, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}

func (s *Service) requireMember(ctx context.Context, groupID, userID uuid.UUID) (model.Role, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return RoleNone, err
	}
	return s.store.MemberRole(ctx, groupID, userID)
}

// CheckMember returns nil when userID belongs to groupID.
func (s *Service) CheckMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := s.requireMember(ctx, groupID, userID)
	return err
}

func (s *Service) Members(ctx context.Context, groupID, userID uuid.UUID) ([]model.GroupMember, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

// ListMessages returns the newest page of messages before the cursor in
// ascending creation order.
func (s *Service) ListMessages(ctx context.Context, groupID, userID uuid.UUID, before *time.Time, limit int) ([]model.GroupMessage, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	limit = min(limit, MaxMessageLimit)

	messages, err := s.store.ListMessages(ctx, groupID, before, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

// ToggleMessageLike likes a message in the group for userID, or removes the
// like when one exists.
func (s *Service) ToggleMessageLike(ctx context.Context, groupID, messageID, userID uuid.UUID) (res model.MessageLikeResult, err error) {
	defer func() { metrics.RecordGroupOperation("like_message", err) }()

	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return model.MessageLikeResult{}, err
	}

	err = s.store.WithTx(ctx, func(q Queries) error {
		ok, err := q.MessageInGroup(ctx, groupID, messageID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMessageNotFound
		}
		if res.Liked, err = q.ToggleMessageLike(ctx, messageID, userID); err != nil {
			return err
		}
		res.LikeCount, err = q.MessageLikeCount(ctx, messageID)
		return err
	})
	if err != nil {
		return model.MessageLikeResult{}, err
	}
	return res, nil
}

func (s *Service) SendMessage(ctx context.Context, groupID, userID uuid.UUID, req model.SendMessageRequest) (msg model.GroupMessage, err error) {
	defer func() { metrics.RecordGroupOperation("send_message", err) }()

	msgType := req.MessageType
	if msgType == "" {
		msgType = model.MessageText
	}
	switch msgType {
	case model.MessageText, model.MessageLocation, model.MessageImage:
	default:
		return model.GroupMessage{}, ErrInvalidMessageType
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return model.GroupMessage{}, ErrEmptyContent
	}

	var audience []uuid.UUID
	err = s.store.WithTx(ctx, func(q Queries) error {
		if _, err := q.GetGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := q.MemberRole(ctx, groupID, userID); err != nil {
			return err
		}
		if req.LocationID != nil {
			if _, err := q.LocationTitle(ctx, *req.LocationID); err != nil {
				return err
			}
		}
		if req.ReplyToID != nil {
			ok, err := q.MessageInGroup(ctx, groupID, *req.ReplyToID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrReplyNotFound
			}
		}

		msg = model.GroupMessage{
			ID:          uuid.New(),
			GroupID:     groupID,
			UserID:      userID,
			MessageType: msgType,
			Content:     content,
			LocationID:  req.LocationID,
			ReplyToID:   req.ReplyToID,
		}
		if err := q.InsertMessage(ctx, &msg); err != nil {
			return err
		}
		if err := q.TouchMember(ctx, groupID, userID); err != nil {
			return err
		}
		var err error
		audience, err = q.MemberIDs(ctx, groupID)
		return err
	})
	if err != nil {
		return model.GroupMessage{}, err
	}

	s.broadcast(ctx, groupID, userID, msg, audience)
	return msg, nil
}

// broadcast pushes a message live without creating notification rows.
func (s *Service) broadcast(ctx context.Context, groupID, actorID uuid.UUID, msg model.GroupMessage, audience []uuid.UUID) {
	s.notify(ctx, events.Event{
		Type:     events.MessageSent,
		GroupID:  groupID,
		ActorID:  actorID,
		Audience: audience,
		Payload:  msg,
	})
}

// ShareLocation pins an existing location to the group and announces it with
// a location message.
func (s *Service) ShareLocation(ctx context.Context, groupID, userID uuid.UUID, req model.ShareLocationRequest) (gl model.GroupLocation, err error) {
	defer func() { metrics.RecordGroupOperation("share_location", err) }()

	var (
		msg      model.GroupMessage
		audience []uuid.UUID
	)
	err = s.store.WithTx(ctx, func(q Queries) error {
		if _, err := q.GetGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := q.MemberRole(ctx, groupID, userID); err != nil {
			return err
		}

		title, err := q.LocationTitle(ctx, req.LocationID)
		if err != nil {
			return err
		}

		shared, err := q.LocationShared(ctx, groupID, req.LocationID)
		if err != nil {
			return err
		}
		if shared {
			return ErrAlreadyShared
		}

		notes := strings.TrimSpace(req.Notes)
		gl = model.GroupLocation{
			ID:         uuid.New(),
			GroupID:    groupID,
			LocationID: req.LocationID,
			SharedBy:   userID,
			Notes:      notes,
			IsPinned:   req.IsPinned,
			Title:      title,
		}
		if err := q.InsertGroupLocation(ctx, &gl); err != nil {
			return err
		}

		content := notes
		if content == "" {
			content = "Shared location: " + title
		}
		locationID := req.LocationID
		msg = model.GroupMessage{
			ID:          uuid.New(),
			GroupID:     groupID,
			UserID:      userID,
			MessageType: model.MessageLocation,
			Content:     content,
			LocationID:  &locationID,
		}
		if err := q.InsertMessage(ctx, &msg); err != nil {
			return err
		}
		audience, err = q.MemberIDs(ctx, groupID)
		return err
	})
	if err != nil {
		return model.GroupLocation{}, err
	}

	s.broadcast(ctx, groupID, userID, msg, audience)
	return gl, nil
}

func (s *Service) SharedLocations(ctx context.Context, groupID, userID uuid.UUID) ([]model.GroupLocation, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.ListGroupLocations(ctx, groupID)
}

// Touch records member activity without sending anything.
func (s *Service) Touch(ctx context.Context, groupID, userID uuid.UUID) error {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return err
	}
	return s.store.TouchMember(ctx, groupID, userID)
}

// actorRole loads the caller's role and turns a missing membership into
// ErrForbidden, since moderation endpoints only exist for members.
func actorRole(ctx context.Context, q Queries, groupID, actorID uuid.UUID) (model.Role, error) {
	role, err := q.MemberRole(ctx, groupID, actorID)
	if errors.Is(err, ErrNotMember) {
		return RoleNone, ErrForbidden
	}
	return role, err
}

func (s *Service) Kick(ctx context.Context, groupID, actorID, targetID uuid.UUID, reason string) (err error) {
	defer func() { metrics.RecordGroupOperation("kick", err) }()

	if actorID == targetID {
		return ErrSelfAction
	}

	var (
		g          model.Group
		targetName string
		msg        model.GroupMessage
	)
	err = s.store.WithTx(ctx, func(q Queries) error {
		var err error
		if g, err = q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		actor, err := actorRole(ctx, q, groupID, actorID)
		if err != nil {
			return err
		}
		target, err := q.MemberRole(ctx, groupID, targetID)
		if errors.Is(err, ErrNotMember) {
			return ErrTargetNotMember
		}
		if err != nil {
			return err
		}
		if !CanKick(actor, target) {
			return ErrForbidden
		}

		if targetName, err = q.Username(ctx, targetID); err != nil {
			return err
		}
		if err := q.DeleteMember(ctx, groupID, targetID); err != nil {
			return err
		}
		if err := q.InsertAdminAction(ctx, groupID, actorID, &targetID, model.ActionKick, reason); err != nil {
			return err
		}
		msg, err = s.systemMessage(ctx, q, groupID, actorID, fmt.Sprintf("removed %s from the group", targetName))
		return err
	})
	if err != nil {
		return err
	}

	message := fmt.Sprintf("You were removed from %s", g.Name)
	if reason != "" {
		message += ". Reason: " + reason
	}
	s.notify(ctx, events.Event{
		Type:       events.MemberKicked,
		GroupID:    groupID,
		ActorID:    actorID,
		Recipients: []uuid.UUID{targetID},
		Removed:    []uuid.UUID{targetID},
		Title:      "Removed from Group",
		Message:    message,
		Data:       map[string]interface{}{"group_name": g.Name, "reason": reason},
		Payload:    msg,
	})
	return nil
}

// Ban removes the target if they are a member and blocks future joins.
func (s *Service) Ban(ctx context.Context, groupID, actorID, targetID uuid.UUID, reason string) (err error) {
	defer func() { metrics.RecordGroupOperation("ban", err) }()

	if actorID == targetID {
		return ErrSelfAction
	}

	var (
		g          model.Group
		targetName string
		msg        model.GroupMessage
		others     []uuid.UUID
	)
	err = s.store.WithTx(ctx, func(q Queries) error {
		var err error
		if g, err = q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		actor, err := actorRole(ctx, q, groupID, actorID)
		if err != nil {
			return err
		}
		if !IsStaff(actor) {
			return ErrForbidden
		}
		if targetName, err = q.Username(ctx, targetID); err != nil {
			return err
		}

		banned, err := q.HasActiveBan(ctx, groupID, targetID)
		if err != nil {
			return err
		}
		if banned {
			return ErrAlreadyBanned
		}

		target, err := q.MemberRole(ctx, groupID, targetID)
		if err != nil && !errors.Is(err, ErrNotMember) {
			return err
		}
		if !CanBan(actor, target) {
			return ErrForbidden
		}
		if target != RoleNone {
			if err := q.DeleteMember(ctx, groupID, targetID); err != nil {
				return err
			}
		}

		if err := q.InsertBan(ctx, model.GroupBan{
			ID:        uuid.New(),
			GroupID:   groupID,
			UserID:    targetID,
			BannedBy:  actorID,
			Reason:    reason,
			CreatedAt: s.now(),
		}); err != nil {
			return err
		}
		if err := q.InsertAdminAction(ctx, groupID, actorID, &targetID, model.ActionBan, reason); err != nil {
			return err
		}
		if msg, err = s.systemMessage(ctx, q, groupID, actorID, fmt.Sprintf("banned %s from the group", targetName)); err != nil {
			return err
		}

		members, err := q.MemberIDs(ctx, groupID)
		if err != nil {
			return err
		}
		others = slices.DeleteFunc(members, func(id uuid.UUID) bool { return id == actorID })
		return nil
	})
	if err != nil {
		return err
	}

	message := fmt.Sprintf("You were banned from %s", g.Name)
	if reason != "" {
		message += ". Reason: " + reason
	}
	data := map[string]interface{}{"group_name": g.Name, "username": targetName, "reason": reason}
	s.notify(ctx, events.Event{
		Type:       events.MemberBanned,
		GroupID:    groupID,
		ActorID:    actorID,
		Recipients: []uuid.UUID{targetID},
		Audience:   []uuid.UUID{targetID},
		Title:      "Banned from Group",
		Message:    message,
		Data:       data,
	})
	s.notify(ctx, events.Event{
		Type:       events.MemberBanned,
		GroupID:    groupID,
		ActorID:    actorID,
		Recipients: others,
		Removed:    []uuid.UUID{targetID},
		Title:      "Member Banned",
		Message:    fmt.Sprintf("%s was banned from %s", targetName, g.Name),
		Data:       data,
		Payload:    msg,
	})
	return nil
}

func (s *Service) Unban(ctx context.Context, groupID, actorID, targetID uuid.UUID) (err error) {
	defer func() { metrics.RecordGroupOperation("unban", err) }()

	var g model.Group
	err = s.store.WithTx(ctx, func(q Queries) error {
		var err error
		if g, err = q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		actor, err := actorRole(ctx, q, groupID, actorID)
		if err != nil {
			return err
		}
		if !IsStaff(actor) {
			return ErrForbidden
		}

		lifted, err := q.LiftBan(ctx, groupID, targetID, actorID)
		if err != nil {
			return err
		}
		if !lifted {
			return ErrNotBanned
		}
		return q.InsertAdminAction(ctx, groupID, actorID, &targetID, model.ActionUnban, "")
	})
	if err != nil {
		return err
	}

	s.notify(ctx, events.Event{
		Type:       events.MemberUnbanned,
		GroupID:    groupID,
		ActorID:    actorID,
		Recipients: []uuid.UUID{targetID},
		Title:      "Unbanned from Group",
		Message:    fmt.Sprintf("You can join %s again", g.Name),
		Data:       map[string]interface{}{"group_name": g.Name},
	})
	return nil
}

func (s *Service) Bans(ctx context.Context, groupID, actorID uuid.UUID) ([]model.GroupBan, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	actor, err := actorRole(ctx, s.store, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !IsStaff(actor) {
		return nil, ErrForbidden
	}
	return s.store.ListBans(ctx, groupID)
}

// ChangeRole promotes a member to admin or demotes an admin to member.
func (s *Service) ChangeRole(ctx context.Context, groupID, actorID, targetID uuid.UUID, newRole model.Role) (err error) {
	defer func() { metrics.RecordGroupOperation("change_role", err) }()

	if newRole != model.RoleAdmin && newRole != model.RoleMember {
		return ErrInvalidRole
	}
	if actorID == targetID {
		return ErrSelfAction
	}

	var (
		g          model.Group
		targetName string
		action     model.AdminAction
		msg        model.GroupMessage
	)
	err = s.store.WithTx(ctx, func(q Queries) error {
		var err error
		if g, err = q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		actor, err := actorRole(ctx, q, groupID, actorID)
		if err != nil {
			return err
		}
		target, err := q.MemberRole(ctx, groupID, targetID)
		if errors.Is(err, ErrNotMember) {
			return ErrTargetNotMember
		}
		if err != nil {
			return err
		}
		if !CanPromote(actor, target, newRole) {
			return ErrForbidden
		}
		if target == newRole {
			return ErrRoleUnchanged
		}

		if targetName, err = q.Username(ctx, targetID); err != nil {
			return err
		}
		if err := q.UpdateMemberRole(ctx, groupID, targetID, newRole); err != nil {
			return err
		}

		action = model.ActionDemote
		content := fmt.Sprintf("changed %s's role to member", targetName)
		if newRole == model.RoleAdmin {
			action = model.ActionPromote
			content = fmt.Sprintf("promoted %s to admin", targetName)
		}
		if err := q.InsertAdminAction(ctx, groupID, actorID, &targetID, action, ""); err != nil {
			return err
		}
		msg, err = s.systemMessage(ctx, q, groupID, actorID, content)
		return err
	})
	if err != nil {
		return err
	}

	s.notify(ctx, events.Event{
		Type:       events.RoleChanged,
		GroupID:    groupID,
		ActorID:    actorID,
		Recipients: []uuid.UUID{targetID},
		Title:      "Role Updated",
		Message:    fmt.Sprintf("Your role in %s is now %s", g.Name, newRole),
		Data:       map[string]interface{}{"group_name": g.Name, "new_role": newRole, "action": action},
		Payload:    msg,
	})
	return nil
}

// Delete removes the group and everything hanging off it. Only the owner may
// do this.
func (s *Service) Delete(ctx context.Context, groupID, actorID uuid.UUID) (err error) {
	defer func() { metrics.RecordGroupOperation("delete", err) }()

	var (
		g      model.Group
		others []uuid.UUID
	)
	err = s.store.WithTx(ctx, func(q Queries) error {
		var err error
		if g, err = q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		actor, err := actorRole(ctx, q, groupID, actorID)
		if err != nil {
			return err
		}
		if actor != model.RoleOwner {
			return ErrForbidden
		}

		members, err := q.MemberIDs(ctx, groupID)
		if err != nil {
			return err
		}
		others = slices.DeleteFunc(members, func(id uuid.UUID) bool { return id == actorID })

		if err := q.InsertAdminAction(ctx, groupID, actorID, nil, model.ActionDelete, ""); err != nil {
			return err
		}
		return q.DeleteGroup(ctx, groupID)
	})
	if err != nil {
		return err
	}

	log.Info().Str("group_id", groupID.String()).Str("owner_id", actorID.String()).Msg("group deleted")
	s.notify(ctx, events.Event{
		Type:       events.GroupDeleted,
		GroupID:    groupID,
		ActorID:    actorID,
		Recipients: others,
		Title:      "Group Deleted",
		Message:    fmt.Sprintf("%s was deleted by its owner", g.Name),
		Data:       map[string]interface{}{"group_name": g.Name},
	})
	return nil
}
