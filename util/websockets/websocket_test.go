package websockets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwise1/outpost/internal/events"
	"github.com/bwise1/outpost/internal/geo"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attach(m *WebSocketManager, userID uuid.UUID, groups ...uuid.UUID) *Client {
	c := &Client{
		UserID: userID,
		groups: make(map[uuid.UUID]struct{}),
		send:   make(chan []byte, sendBuffer),
	}
	for _, g := range groups {
		c.groups[g] = struct{}{}
	}
	m.clients[c] = struct{}{}
	return c
}

func drain(c *Client) []Outgoing {
	var out []Outgoing
	for {
		select {
		case raw := <-c.send:
			var msg Outgoing
			if err := json.Unmarshal(raw, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func allowAll(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func TestHandleDeliversToSubscribers(t *testing.T) {
	m := NewWebSocketManager(allowAll)
	groupID, otherGroup := uuid.New(), uuid.New()

	member := attach(m, uuid.New(), groupID)
	admin := attach(m, uuid.New(), groupID)
	outsider := attach(m, uuid.New(), otherGroup)

	require.NoError(t, m.Handle(context.Background(), events.Event{Type: events.MessageSent, GroupID: groupID}))

	for _, c := range []*Client{member, admin} {
		got := drain(c)
		require.Len(t, got, 1)
		assert.Equal(t, MsgTypeGroupEvent, got[0].Type)
		assert.Equal(t, string(events.MessageSent), got[0].Event)
		assert.Equal(t, groupID, *got[0].GroupID)
	}
	assert.Empty(t, drain(outsider))

	require.NoError(t, m.Handle(context.Background(), events.Event{
		Type:     events.MemberBanned,
		GroupID:  groupID,
		Audience: []uuid.UUID{admin.UserID},
	}))
	assert.Empty(t, drain(member))
	assert.Len(t, drain(admin), 1)
}

func TestDepartedMemberStopsReceivingEvents(t *testing.T) {
	m := NewWebSocketManager(allowAll)
	groupID := uuid.New()

	leaver := attach(m, uuid.New(), groupID)
	stayer := attach(m, uuid.New(), groupID)

	require.NoError(t, m.Handle(context.Background(), events.Event{
		Type:    events.MemberLeft,
		GroupID: groupID,
		Removed: []uuid.UUID{leaver.UserID},
	}))
	assert.Empty(t, drain(leaver))
	assert.Len(t, drain(stayer), 1)
	assert.False(t, leaver.subscribed(groupID))

	for _, typ := range []events.Type{events.MemberJoined, events.MessageSent} {
		require.NoError(t, m.Handle(context.Background(), events.Event{Type: typ, GroupID: groupID}))
	}
	assert.Empty(t, drain(leaver))
	assert.Len(t, drain(stayer), 2)
}

func TestBannedMemberGetsNoticeThenNothing(t *testing.T) {
	m := NewWebSocketManager(allowAll)
	groupID := uuid.New()

	target := attach(m, uuid.New(), groupID)
	other := attach(m, uuid.New(), groupID)

	require.NoError(t, m.Handle(context.Background(), events.Event{
		Type:     events.MemberBanned,
		GroupID:  groupID,
		Audience: []uuid.UUID{target.UserID},
	}))
	require.NoError(t, m.Handle(context.Background(), events.Event{
		Type:    events.MemberBanned,
		GroupID: groupID,
		Removed: []uuid.UUID{target.UserID},
	}))
	require.NoError(t, m.Handle(context.Background(), events.Event{Type: events.MessageSent, GroupID: groupID}))

	assert.Len(t, drain(target), 1)
	assert.Len(t, drain(other), 2)
}

func TestGroupDeletedClearsSubscriptions(t *testing.T) {
	m := NewWebSocketManager(allowAll)
	groupID := uuid.New()
	c := attach(m, uuid.New(), groupID)

	require.NoError(t, m.Handle(context.Background(), events.Event{Type: events.GroupDeleted, GroupID: groupID}))
	assert.Len(t, drain(c), 1)
	assert.False(t, c.subscribed(groupID))

	require.NoError(t, m.Handle(context.Background(), events.Event{Type: events.MessageSent, GroupID: groupID}))
	assert.Empty(t, drain(c))
}

func TestRegistrationAfterShutdownDoesNotBlock(t *testing.T) {
	m := NewWebSocketManager(allowAll)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(stopped)
	}()

	live := &Client{UserID: uuid.New(), groups: map[uuid.UUID]struct{}{}, send: make(chan []byte, 1)}
	require.True(t, m.add(live))

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, open := <-live.send
	assert.False(t, open)
	assert.Empty(t, m.clients)

	late := &Client{UserID: uuid.New(), groups: map[uuid.UUID]struct{}{}, send: make(chan []byte, 1)}
	finished := make(chan bool, 1)
	go func() {
		ok := m.add(late)
		m.remove(late)
		m.remove(live)
		finished <- ok
	}()
	select {
	case ok := <-finished:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("register after shutdown blocked")
	}
}

func TestBroadcastNearby(t *testing.T) {
	m := NewWebSocketManager(allowAll)
	sender := uuid.New()
	center := geo.Point{Lat: 40.0, Lng: -74.0}

	self := attach(m, sender)
	self.Latitude, self.Longitude, self.HasFix = center.Lat, center.Lng, true

	near := attach(m, uuid.New())
	near.Latitude, near.Longitude, near.HasFix = 40.05, -74.0, true

	far := attach(m, uuid.New())
	far.Latitude, far.Longitude, far.HasFix = 41.0, -74.0, true

	noFix := attach(m, uuid.New())

	sent := m.BroadcastNearby(map[string]string{"user": sender.String()}, center, 10, sender)
	assert.Equal(t, 1, sent)
	assert.Len(t, drain(near), 1)
	assert.Empty(t, drain(self))
	assert.Empty(t, drain(far))
	assert.Empty(t, drain(noFix))
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	c := &Client{UserID: uuid.New(), send: make(chan []byte, 1)}
	enqueue(c, []byte("a"))
	enqueue(c, []byte("b"))
	assert.Len(t, c.send, 1)
	assert.Equal(t, []byte("a"), <-c.send)
}

func TestSubscribeOverConnection(t *testing.T) {
	allowed := uuid.New()
	userID := uuid.New()
	m := NewWebSocketManager(func(_ context.Context, groupID, _ uuid.UUID) error {
		if groupID != allowed {
			return errors.New("user is not a member of this group")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HandleConnections(w, r, userID)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Outgoing {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var out Outgoing
		require.NoError(t, conn.ReadJSON(&out))
		return out
	}

	require.NoError(t, conn.WriteJSON(Message{Type: MsgTypeSubscribe, GroupID: uuid.New()}))
	denied := read()
	assert.Equal(t, MsgTypeError, denied.Type)
	assert.Contains(t, denied.Error, "not a member")

	require.NoError(t, conn.WriteJSON(Message{Type: MsgTypeSubscribe, GroupID: allowed}))
	ack := read()
	assert.Equal(t, MsgTypeSubscribed, ack.Type)
	require.NotNil(t, ack.GroupID)
	assert.Equal(t, allowed, *ack.GroupID)

	require.NoError(t, m.Handle(context.Background(), events.Event{Type: events.MemberJoined, GroupID: allowed}))
	ev := read()
	assert.Equal(t, MsgTypeGroupEvent, ev.Type)
	assert.Equal(t, string(events.MemberJoined), ev.Event)

	require.NoError(t, conn.WriteJSON(Message{Type: MsgTypePosition, Latitude: 120, Longitude: 0}))
	assert.Equal(t, MsgTypeError, read().Type)
}
