package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Frame is the envelope for every outbound socket event.
type Frame struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func NewFrame(frameType string, data any) Frame {
	return Frame{Type: frameType, Data: data, Timestamp: time.Now().UTC()}
}

// UserRoom is the personal broadcast room every authenticated connection
// auto-joins. The "user:" prefix is a reserved namespace: connections may
// only ever join their own personal room.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Hub is the connection registry: connection→user bindings plus named
// broadcast rooms. The raw tables are never exposed; callers get bind,
// unbind, lookup, join/leave and broadcast operations only. All state is
// guarded by one mutex, so the hub is safe for the goroutine-per-connection
// model.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	rooms   map[string]map[uuid.UUID]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		rooms:   make(map[string]map[uuid.UUID]*Client),
		logger:  logger,
	}
}

// Bind registers an authenticated connection.
func (h *Hub) Bind(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.String("user_id", client.userID.String()),
		zap.Int("total_clients", total),
	)
}

// Unbind removes the connection→user binding and drops the connection from
// every room it joined. Safe to call more than once; the send channel is
// closed exactly once.
func (h *Hub) Unbind(client *Client) {
	h.mu.Lock()
	_, bound := h.clients[client.id]
	if bound {
		delete(h.clients, client.id)
		for room, members := range h.rooms {
			delete(members, client.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
		client.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()

	if bound {
		h.logger.Info("websocket client disconnected",
			zap.String("user_id", client.userID.String()),
			zap.Int("total_clients", total),
		)
	}
}

// Lookup resolves a connection id to its bound user.
func (h *Hub) Lookup(connectionID uuid.UUID) (uuid.UUID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connectionID]
	if !ok {
		return uuid.Nil, false
	}
	return client.userID, true
}

func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, bound := h.clients[client.id]; !bound {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]*Client)
		h.rooms[room] = members
	}
	members[client.id] = client
}

func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client.id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// RoomSize reports how many connections are in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastRoom fans a frame out to every connection in a room. A client
// whose send buffer is full has the frame dropped; delivery is best-effort.
func (h *Hub) BroadcastRoom(room string, frame Frame) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for _, client := range h.rooms[room] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		client.enqueue(frame, h.logger)
	}
}

// BroadcastAll fans a frame out to every connected client.
func (h *Hub) BroadcastAll(frame Frame) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.enqueue(frame, h.logger)
	}
}

// CloseAll unbinds every client. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Unbind(client)
	}
}
