package websockets

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/bwise1/outpost/internal/events"
	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketManager initializes a WebSocketManager. check gates group
// subscriptions.
func NewWebSocketManager(check MembershipCheck) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		check:      check,
	}
}

// Run owns client registration until ctx is done. Once it returns, register
// and unregister stop blocking and every remaining client is closed.
func (manager *WebSocketManager) Run(ctx context.Context) {
	defer close(manager.done)
	for {
		select {
		case <-ctx.Done():
			manager.mu.Lock()
			for client := range manager.clients {
				close(client.send)
				delete(manager.clients, client)
				metrics.WebsocketConnections.Dec()
			}
			manager.mu.Unlock()
			return

		case client := <-manager.register:
			manager.mu.Lock()
			manager.clients[client] = struct{}{}
			manager.mu.Unlock()
			metrics.WebsocketConnections.Inc()

		case client := <-manager.unregister:
			manager.mu.Lock()
			if _, exists := manager.clients[client]; exists {
				delete(manager.clients, client)
				close(client.send)
				metrics.WebsocketConnections.Dec()
				log.Debug().Str("user_id", client.UserID.String()).Msg("websocket client disconnected")
			}
			manager.mu.Unlock()
		}
	}
}

// HandleConnections upgrades an authenticated request and serves the client
// until it disconnects.
func (manager *WebSocketManager) HandleConnections(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		Conn:   conn,
		UserID: userID,
		groups: make(map[uuid.UUID]struct{}),
		send:   make(chan []byte, sendBuffer),
	}
	if !manager.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	manager.readPump(r.Context(), client)
}

// add hands client to Run. It reports false once the manager has stopped.
func (manager *WebSocketManager) add(client *Client) bool {
	select {
	case manager.register <- client:
		return true
	case <-manager.done:
		return false
	}
}

func (manager *WebSocketManager) remove(client *Client) {
	select {
	case manager.unregister <- client:
	case <-manager.done:
	}
}

func (manager *WebSocketManager) readPump(ctx context.Context, client *Client) {
	defer func() {
		manager.remove(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			return
		}

		var message Message
		if err := json.Unmarshal(raw, &message); err != nil {
			manager.reply(client, Outgoing{Type: MsgTypeError, Error: "invalid json"})
			continue
		}

		switch message.Type {
		case MsgTypeSubscribe:
			if err := manager.check(ctx, message.GroupID, client.UserID); err != nil {
				manager.reply(client, Outgoing{Type: MsgTypeError, GroupID: &message.GroupID, Error: err.Error()})
				continue
			}
			client.mu.Lock()
			client.groups[message.GroupID] = struct{}{}
			client.mu.Unlock()
			manager.reply(client, Outgoing{Type: MsgTypeSubscribed, GroupID: &message.GroupID})

		case MsgTypeUnsubscribe:
			client.drop(message.GroupID)

		case MsgTypePosition:
			p := geo.Point{Lat: message.Latitude, Lng: message.Longitude}
			if err := p.Validate(); err != nil {
				manager.reply(client, Outgoing{Type: MsgTypeError, Error: err.Error()})
				continue
			}
			client.mu.Lock()
			client.Latitude, client.Longitude, client.HasFix = p.Lat, p.Lng, true
			client.mu.Unlock()

		default:
			manager.reply(client, Outgoing{Type: MsgTypeError, Error: "unknown message type"})
		}
	}
}

func (client *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue drops the payload for clients whose buffer is full.
func enqueue(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		log.Debug().Str("user_id", client.UserID.String()).Msg("websocket buffer full, dropping message")
	}
}

func (manager *WebSocketManager) reply(client *Client, out Outgoing) {
	payload, err := json.Marshal(out)
	if err != nil {
		return
	}
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	if _, ok := manager.clients[client]; ok {
		enqueue(client, payload)
	}
}

func (manager *WebSocketManager) Name() string { return "websocket" }

// Handle pushes a group event to every client following the group. A non-empty
// Audience further restricts delivery to those users. Users named in Removed
// lose their subscription before delivery, and a deleted group is dropped
// from every client after its final event.
func (manager *WebSocketManager) Handle(_ context.Context, ev events.Event) error {
	groupID := ev.GroupID
	payload, err := json.Marshal(Outgoing{
		Type:    MsgTypeGroupEvent,
		Event:   string(ev.Type),
		GroupID: &groupID,
		Data:    ev,
	})
	if err != nil {
		return err
	}

	manager.mu.RLock()
	defer manager.mu.RUnlock()
	for client := range manager.clients {
		if slices.Contains(ev.Removed, client.UserID) {
			client.drop(ev.GroupID)
		}
		if !client.subscribed(ev.GroupID) {
			continue
		}
		if len(ev.Audience) == 0 || slices.Contains(ev.Audience, client.UserID) {
			enqueue(client, payload)
		}
		if ev.Type == events.GroupDeleted {
			client.drop(ev.GroupID)
		}
	}
	return nil
}

// BroadcastNearby sends data to every client whose last position lies within
// radiusKm of center, skipping the originating user.
func (manager *WebSocketManager) BroadcastNearby(data interface{}, center geo.Point, radiusKm float64, from uuid.UUID) int {
	payload, err := json.Marshal(Outgoing{Type: MsgTypeUserActive, Data: data})
	if err != nil {
		return 0
	}

	manager.mu.RLock()
	defer manager.mu.RUnlock()

	sent := 0
	for client := range manager.clients {
		if client.UserID == from {
			continue
		}
		client.mu.RLock()
		p, ok := geo.Point{Lat: client.Latitude, Lng: client.Longitude}, client.HasFix
		client.mu.RUnlock()
		if ok && geo.Distance(center, p) <= radiusKm {
			enqueue(client, payload)
			sent++
		}
	}
	return sent
}
