package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport is the websocket Transport used when several processes share a
// hub. Messages are JSON frames.
type WSTransport struct {
	mu    gosync.Mutex
	conn  *websocket.Conn
	inbox chan Message
	done  chan struct{}
}

// Dial connects to a sync hub.
func Dial(ctx context.Context, url string) (*WSTransport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	t := &WSTransport{
		conn:  conn,
		inbox: make(chan Message, 64),
		done:  make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Make sure we conform to the interface
var _ Transport = (*WSTransport)(nil)

func (t *WSTransport) readLoop() {
	defer close(t.inbox)
	for {
		_, payload, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			// Not a protocol frame; skip it.
			continue
		}
		select {
		case t.inbox <- msg:
		case <-t.done:
			return
		}
	}
}

// Send broadcasts a message through the hub.
func (t *WSTransport) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write sync message: %w", err)
	}
	return nil
}

// Receive returns the inbound message channel.
func (t *WSTransport) Receive() <-chan Message {
	return t.inbox
}

// Close closes the connection.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	close(t.done)
	t.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return t.conn.Close()
}
