// Package realtime delivers named events to connected chat clients over
// WebSocket. Delivery is best-effort: a connection that fails a write is
// dropped, and ordering across connections is owned by the transport.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/coder/websocket"
)

// Event names understood by clients.
const (
	EventNewMessage  = "newMessage"
	EventOnlineUsers = "onlineUsers"
)

// Envelope is the wire frame for every event on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub tracks live WebSocket connections per user.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

// Register adds a connection for the user.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

// Unregister removes a connection for the user.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Online returns the IDs of users with at least one live connection, sorted
// for stable output.
func (h *Hub) Online() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SendToUser delivers an event to every live connection of the user.
// Connections that fail the write are dropped.
func (h *Hub) SendToUser(ctx context.Context, userID, event string, data interface{}) {
	frame, err := marshalFrame(event, data)
	if err != nil {
		slog.Error("Failed to marshal event", "event", event, "error", err)
		return
	}

	for _, conn := range h.userConns(userID) {
		if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
			slog.Debug("Dropping dead connection", "user_id", userID, "error", err)
			h.Unregister(userID, conn)
			_ = conn.Close(websocket.StatusGoingAway, "write failed")
		}
	}
}

// BroadcastOnline pushes the current online-user list to every connection.
func (h *Hub) BroadcastOnline(ctx context.Context) {
	online := h.Online()
	for _, userID := range online {
		h.SendToUser(ctx, userID, EventOnlineUsers, online)
	}
}

func (h *Hub) userConns(userID string) []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	conns := make([]*websocket.Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

func marshalFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return frame, nil
}
