package channel

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// conn wraps a gorilla websocket connection with a write mutex and a
// close-once guard. Reads stay single-goroutine (the manager's read loop).
type conn struct {
	socket *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

func newConn(socket *websocket.Conn) *conn {
	return &conn{socket: socket}
}

// WriteEnvelope sends one envelope as a text message.
func (c *conn) WriteEnvelope(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("connection already closed")
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.socket.WriteMessage(websocket.TextMessage, data)
}

// ReadEnvelope blocks until the next envelope arrives.
func (c *conn) ReadEnvelope() (Envelope, error) {
	_, data, err := c.socket.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Close terminates the underlying websocket connection.
func (c *conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.socket.Close()
}

// IsClosed reports whether the connection has already been closed.
func (c *conn) IsClosed() bool {
	return c.closed.Load()
}
