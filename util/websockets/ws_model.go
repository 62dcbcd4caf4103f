package websockets

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message types
const (
	MsgTypeSubscribe   = "subscribe"
	MsgTypeSubscribed  = "subscribed"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypePosition    = "position"
	MsgTypeGroupEvent  = "group_event"
	MsgTypeUserActive  = "user_active"
	MsgTypeError       = "error"
)

// MembershipCheck returns nil when userID may follow groupID.
type MembershipCheck func(ctx context.Context, groupID, userID uuid.UUID) error

// Client represents a connected WebSocket user
type Client struct {
	Conn      *websocket.Conn
	UserID    uuid.UUID
	Latitude  float64
	Longitude float64
	HasFix    bool

	groups map[uuid.UUID]struct{}
	send   chan []byte
	mu     sync.RWMutex
}

func (c *Client) subscribed(groupID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.groups[groupID]
	return ok
}

func (c *Client) drop(groupID uuid.UUID) {
	c.mu.Lock()
	delete(c.groups, groupID)
	c.mu.Unlock()
}

type WebSocketManager struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	check      MembershipCheck
	mu         sync.RWMutex
}

// Message struct for incoming WebSocket messages
type Message struct {
	Type      string    `json:"type"`
	GroupID   uuid.UUID `json:"group_id,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
}

// Outgoing is the envelope of everything the server pushes.
type Outgoing struct {
	Type    string      `json:"type"`
	Event   string      `json:"event,omitempty"`
	GroupID *uuid.UUID  `json:"group_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
