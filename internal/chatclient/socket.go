package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/avolkov/chatter/internal/realtime"
)

// EventChannel is the shared real-time channel the conversation store
// subscribes to. On replaces any previous handler for the event; Off removes
// it. Handlers run on the delivery goroutine.
type EventChannel interface {
	On(event string, handler func(data json.RawMessage))
	Off(event string)
}

// Socket is a WebSocket-backed EventChannel reading envelope frames from the
// server.
type Socket struct {
	conn *websocket.Conn
	stop context.CancelFunc

	mu       sync.Mutex
	handlers map[string]func(json.RawMessage)
}

// DialSocket connects the real-time channel. The client's cookie jar supplies
// the session cookie during the handshake, so Login or Signup must have
// happened first.
func (c *Client) DialSocket(ctx context.Context) (*Socket, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: c.http,
	})
	if err != nil {
		return nil, fmt.Errorf("dial realtime channel: %w", err)
	}

	readCtx, stop := context.WithCancel(context.Background())
	s := &Socket{
		conn:     conn,
		stop:     stop,
		handlers: make(map[string]func(json.RawMessage)),
	}
	go s.readLoop(readCtx)
	return s, nil
}

// On registers the handler for an event, replacing any previous one.
func (s *Socket) On(event string, handler func(data json.RawMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
}

// Off removes the handler for an event.
func (s *Socket) Off(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

// Close tears down the connection and stops the read loop.
func (s *Socket) Close() error {
	s.stop()
	return s.conn.Close(websocket.StatusNormalClosure, "client closed")
}

func (s *Socket) readLoop(ctx context.Context) {
	for {
		_, frame, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("Realtime channel closed", "error", err)
			}
			return
		}

		var env realtime.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			slog.Debug("Discarding malformed frame", "error", err)
			continue
		}

		s.mu.Lock()
		handler := s.handlers[env.Event]
		s.mu.Unlock()

		if handler != nil {
			handler(env.Data)
		}
	}
}
