package group

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bwise1/outpost/internal/model"
	"github.com/google/uuid"
)

type pair struct{ a, b uuid.UUID }

type adminActionRow struct {
	groupID, adminID uuid.UUID
	target           *uuid.UUID
	action           model.AdminAction
}

type memState struct {
	users     map[uuid.UUID]string
	groups    map[uuid.UUID]model.Group
	members   map[pair]model.GroupMember
	bans      map[pair]model.GroupBan
	actions   []adminActionRow
	messages  []model.GroupMessage
	locations map[uuid.UUID]string
	shared    map[pair]model.GroupLocation
	likes     map[pair]struct{}
	clock     time.Time

	allCodesTaken    bool
	failMessageWrite bool
	codeLookups      int
}

func (s *memState) clone() *memState {
	c := *s
	c.users = maps.Clone(s.users)
	c.groups = maps.Clone(s.groups)
	c.members = maps.Clone(s.members)
	c.bans = maps.Clone(s.bans)
	c.actions = slices.Clone(s.actions)
	c.messages = slices.Clone(s.messages)
	c.locations = maps.Clone(s.locations)
	c.shared = maps.Clone(s.shared)
	c.likes = maps.Clone(s.likes)
	return &c
}

func (s *memState) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// memStore serializes transactions with a mutex and restores a snapshot on
// rollback.
type memStore struct {
	memQueries
	mu sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{memQueries: memQueries{st: &memState{
		users:     map[uuid.UUID]string{},
		groups:    map[uuid.UUID]model.Group{},
		members:   map[pair]model.GroupMember{},
		bans:      map[pair]model.GroupBan{},
		locations: map[uuid.UUID]string{},
		shared:    map[pair]model.GroupLocation{},
		likes:     map[pair]struct{}{},
		clock:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}}}
}

func (m *memStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.memQueries); err != nil {
		*m.st = *snapshot
		return err
	}
	return nil
}

func (m *memStore) addUser(name string) uuid.UUID {
	id := uuid.New()
	m.st.users[id] = name
	return id
}

func (m *memStore) addLocation(title string) uuid.UUID {
	id := uuid.New()
	m.st.locations[id] = title
	return id
}

func (m *memStore) memberCount(groupID uuid.UUID) int {
	n := 0
	for k := range m.st.members {
		if k.a == groupID {
			n++
		}
	}
	return n
}

func (m *memStore) groupMessages(groupID uuid.UUID) []model.GroupMessage {
	var out []model.GroupMessage
	for _, msg := range m.st.messages {
		if msg.GroupID == groupID {
			out = append(out, msg)
		}
	}
	return out
}

type memQueries struct {
	st *memState
}

func (q memQueries) InviteCodeExists(_ context.Context, code string) (bool, error) {
	if q.st.allCodesTaken {
		return true, nil
	}
	for _, g := range q.st.groups {
		if g.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (q memQueries) InsertGroup(ctx context.Context, g *model.Group) error {
	if taken, _ := q.InviteCodeExists(ctx, g.InviteCode); taken {
		return ErrInviteCodeCollision
	}
	g.CreatedAt = q.st.tick()
	g.UpdatedAt = g.CreatedAt
	q.st.groups[g.ID] = *g
	return nil
}

func (q memQueries) GetGroup(_ context.Context, groupID uuid.UUID) (model.Group, error) {
	g, ok := q.st.groups[groupID]
	if !ok {
		return model.Group{}, ErrGroupNotFound
	}
	g.MemberCount, _ = q.CountMembers(context.Background(), groupID)
	return g, nil
}

func (q memQueries) LockGroup(ctx context.Context, groupID uuid.UUID) (model.Group, error) {
	return q.GetGroup(ctx, groupID)
}

func (q memQueries) LockGroupByCode(ctx context.Context, code string) (model.Group, error) {
	q.st.codeLookups++
	for _, g := range q.st.groups {
		if g.InviteCode == code {
			return q.GetGroup(ctx, g.ID)
		}
	}
	return model.Group{}, ErrGroupNotFound
}

func (q memQueries) DeleteGroup(_ context.Context, groupID uuid.UUID) error {
	delete(q.st.groups, groupID)
	for k := range q.st.members {
		if k.a == groupID {
			delete(q.st.members, k)
		}
	}
	for k := range q.st.bans {
		if k.a == groupID {
			delete(q.st.bans, k)
		}
	}
	for k := range q.st.shared {
		if k.a == groupID {
			delete(q.st.shared, k)
		}
	}
	q.st.messages = slices.DeleteFunc(q.st.messages, func(m model.GroupMessage) bool { return m.GroupID == groupID })
	return nil
}

func (q memQueries) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]model.Group, error) {
	groups := []model.Group{}
	for k, m := range q.st.members {
		if k.b != userID {
			continue
		}
		g, err := q.GetGroup(ctx, k.a)
		if err != nil {
			return nil, err
		}
		g.MyRole = m.Role
		groups = append(groups, g)
	}
	return groups, nil
}

func (q memQueries) InsertMember(_ context.Context, m model.GroupMember) error {
	k := pair{m.GroupID, m.UserID}
	if _, ok := q.st.members[k]; ok {
		return ErrAlreadyMember
	}
	m.LastActiveAt = m.JoinedAt
	q.st.members[k] = m
	return nil
}

func (q memQueries) MemberRole(_ context.Context, groupID, userID uuid.UUID) (model.Role, error) {
	m, ok := q.st.members[pair{groupID, userID}]
	if !ok {
		return RoleNone, ErrNotMember
	}
	return m.Role, nil
}

func (q memQueries) CountMembers(_ context.Context, groupID uuid.UUID) (int, error) {
	n := 0
	for k := range q.st.members {
		if k.a == groupID {
			n++
		}
	}
	return n, nil
}

func (q memQueries) ListMembers(_ context.Context, groupID uuid.UUID) ([]model.GroupMember, error) {
	members := []model.GroupMember{}
	for k, m := range q.st.members {
		if k.a == groupID {
			m.Username = q.st.users[k.b]
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if rank(members[i].Role) != rank(members[j].Role) {
			return rank(members[i].Role) > rank(members[j].Role)
		}
		return members[i].Username < members[j].Username
	})
	return members, nil
}

func (q memQueries) MemberIDs(_ context.Context, groupID uuid.UUID, roles ...model.Role) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for k, m := range q.st.members {
		if k.a != groupID {
			continue
		}
		if len(roles) > 0 && !slices.Contains(roles, m.Role) {
			continue
		}
		ids = append(ids, k.b)
	}
	return ids, nil
}

func (q memQueries) DeleteMember(_ context.Context, groupID, userID uuid.UUID) error {
	delete(q.st.members, pair{groupID, userID})
	return nil
}

func (q memQueries) UpdateMemberRole(_ context.Context, groupID, userID uuid.UUID, role model.Role) error {
	k := pair{groupID, userID}
	m := q.st.members[k]
	m.Role = role
	q.st.members[k] = m
	return nil
}

func (q memQueries) TouchMember(_ context.Context, groupID, userID uuid.UUID) error {
	k := pair{groupID, userID}
	m, ok := q.st.members[k]
	if !ok {
		return nil
	}
	m.LastActiveAt = q.st.tick()
	q.st.members[k] = m
	return nil
}

func (q memQueries) Username(_ context.Context, userID uuid.UUID) (string, error) {
	name, ok := q.st.users[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return name, nil
}

func (q memQueries) HasActiveBan(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	_, ok := q.st.bans[pair{groupID, userID}]
	return ok, nil
}

func (q memQueries) InsertBan(_ context.Context, b model.GroupBan) error {
	k := pair{b.GroupID, b.UserID}
	if _, ok := q.st.bans[k]; ok {
		return ErrAlreadyBanned
	}
	q.st.bans[k] = b
	return nil
}

func (q memQueries) LiftBan(_ context.Context, groupID, userID, _ uuid.UUID) (bool, error) {
	k := pair{groupID, userID}
	if _, ok := q.st.bans[k]; !ok {
		return false, nil
	}
	delete(q.st.bans, k)
	return true, nil
}

func (q memQueries) ListBans(_ context.Context, groupID uuid.UUID) ([]model.GroupBan, error) {
	bans := []model.GroupBan{}
	for k, b := range q.st.bans {
		if k.a == groupID {
			bans = append(bans, b)
		}
	}
	return bans, nil
}

func (q memQueries) InsertAdminAction(_ context.Context, groupID, adminID uuid.UUID, target *uuid.UUID, action model.AdminAction, _ string) error {
	q.st.actions = append(q.st.actions, adminActionRow{groupID: groupID, adminID: adminID, target: target, action: action})
	return nil
}

func (q memQueries) InsertMessage(_ context.Context, m *model.GroupMessage) error {
	if q.st.failMessageWrite {
		return errors.New("message table unavailable")
	}
	m.CreatedAt = q.st.tick()
	q.st.messages = append(q.st.messages, *m)
	return nil
}

func (q memQueries) ListMessages(_ context.Context, groupID uuid.UUID, before *time.Time, limit int) ([]model.GroupMessage, error) {
	out := []model.GroupMessage{}
	for i := len(q.st.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := q.st.messages[i]
		if m.GroupID != groupID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		m.LikeCount, _ = q.MessageLikeCount(context.Background(), m.ID)
		if m.LocationID != nil {
			if title, ok := q.st.locations[*m.LocationID]; ok {
				m.LocationTitle = &title
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (q memQueries) MessageInGroup(_ context.Context, groupID, messageID uuid.UUID) (bool, error) {
	for _, m := range q.st.messages {
		if m.ID == messageID {
			return m.GroupID == groupID, nil
		}
	}
	return false, nil
}

func (q memQueries) ToggleMessageLike(_ context.Context, messageID, userID uuid.UUID) (bool, error) {
	k := pair{messageID, userID}
	if _, ok := q.st.likes[k]; ok {
		delete(q.st.likes, k)
		return false, nil
	}
	q.st.likes[k] = struct{}{}
	return true, nil
}

func (q memQueries) MessageLikeCount(_ context.Context, messageID uuid.UUID) (int, error) {
	n := 0
	for k := range q.st.likes {
		if k.a == messageID {
			n++
		}
	}
	return n, nil
}

func (q memQueries) LocationTitle(_ context.Context, locationID uuid.UUID) (string, error) {
	title, ok := q.st.locations[locationID]
	if !ok {
		return "", ErrLocationNotFound
	}
	return title, nil
}

func (q memQueries) LocationShared(_ context.Context, groupID, locationID uuid.UUID) (bool, error) {
	_, ok := q.st.shared[pair{groupID, locationID}]
	return ok, nil
}

func (q memQueries) InsertGroupLocation(_ context.Context, gl *model.GroupLocation) error {
	k := pair{gl.GroupID, gl.LocationID}
	if _, ok := q.st.shared[k]; ok {
		return ErrAlreadyShared
	}
	gl.CreatedAt = q.st.tick()
	q.st.shared[k] = *gl
	return nil
}

func (q memQueries) ListGroupLocations(_ context.Context, groupID uuid.UUID) ([]model.GroupLocation, error) {
	out := []model.GroupLocation{}
	for k, gl := range q.st.shared {
		if k.a == groupID {
			out = append(out, gl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
