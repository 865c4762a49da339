package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// DefaultWriteTimeout bounds each frame written to a WebSocket.
const DefaultWriteTimeout = 10 * time.Second

// WebSocket delivers entries as JSON frames over a WebSocket connection.
// The connection stays open across turns; Close only ends the current turn.
type WebSocket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// NewWebSocket wraps conn.
func NewWebSocket(conn *websocket.Conn, writeTimeout time.Duration) *WebSocket {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebSocket{conn: conn, writeTimeout: writeTimeout}
}

// Start is a no-op; the handshake already happened.
func (w *WebSocket) Start() error { return nil }

// Send writes msg as a message frame.
func (w *WebSocket) Send(msg domain.ConversationMessage) error {
	frame := msg.Frame()
	return w.write(domain.SocketFrame{Event: domain.FrameMessage, Data: &frame})
}

// Close writes the close frame marking the end of a turn.
func (w *WebSocket) Close() error {
	return w.write(domain.SocketFrame{Event: domain.FrameClose})
}

// Ping writes a ping control frame.
func (w *WebSocket) Ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
}

func (w *WebSocket) write(frame domain.SocketFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	if err := w.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", frame.Event, err)
	}
	return nil
}
