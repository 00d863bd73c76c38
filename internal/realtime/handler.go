package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/avolkov/chatter/internal/auth"
)

// Handler upgrades authenticated requests to WebSocket connections and keeps
// them registered in the hub for the lifetime of the connection.
type Handler struct {
	hub   *Hub
	isDev bool
}

// NewHandler creates a WebSocket handler backed by the hub.
func NewHandler(hub *Hub, isDev bool) *Handler {
	return &Handler{hub: hub, isDev: isDev}
}

// ServeHTTP implements http.Handler for WebSocket upgrade. It must be mounted
// behind auth.RequireAuth so the caller identity is already in the context.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket connection request", "user_id", user.UserID, "ip", r.RemoteAddr)

	opts := &websocket.AcceptOptions{}
	if h.isDev {
		// Local frontends run on a different port, so same-origin checks
		// cannot hold in development.
		opts.InsecureSkipVerify = true
	}

	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", user.UserID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", user.UserID)
		}
	}()

	h.hub.Register(user.UserID, ws)
	h.hub.BroadcastOnline(r.Context())
	defer func() {
		h.hub.Unregister(user.UserID, ws)
		h.hub.BroadcastOnline(context.Background())
	}()

	// Clients only listen on this channel; drain incoming frames so pings
	// and close handshakes are processed until the peer goes away.
	for {
		if _, _, err := ws.Read(r.Context()); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return
			}
			slog.Debug("WebSocket read ended", "error", err, "user_id", user.UserID)
			return
		}
	}
}
