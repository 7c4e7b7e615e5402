package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// sendQueueSize is the number of frames queued per client before it is
// considered too slow and dropped.
const sendQueueSize = 256

// frame is one queued outbound message. A close frame ends the queue.
type frame struct {
	text   string
	close  bool
	code   int
	reason string
}

// Client is one websocket connection with a bounded outbound queue drained
// by its write pump.
type Client struct {
	conn *websocket.Conn
	send chan frame

	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan frame, sendQueueSize),
	}
}

// SendText queues a text frame. It reports false once the client is closed.
// A client whose queue is full is closed.
func (c *Client) SendText(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame{text: text}:
		return true
	default:
		c.closeLocked()
		return false
	}
}

// CloseWith queues a close frame after everything already queued.
func (c *Client) CloseWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- frame{close: true, code: code, reason: reason}:
	default:
	}
	c.closeLocked()
}

// Close stops the queue. The write pump sends a plain close frame.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Conn returns the underlying websocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

func (c *Client) queue() <-chan frame {
	return c.send
}
