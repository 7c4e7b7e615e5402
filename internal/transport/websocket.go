// Package transport provides the websocket implementation of console.Dialer.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gangaflow/console/internal/console"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next ping from the server before the link is
	// considered dead. The server pings well inside this window.
	pingWait = 90 * time.Second

	// Maximum message size accepted from the server.
	maxMessageSize = 1 << 20

	handshakeTimeout = 10 * time.Second
)

// Dialer opens websocket transports to a shell server.
type Dialer struct {
	ws *websocket.Dialer
}

// NewDialer returns a Dialer with default handshake settings.
func NewDialer() *Dialer {
	return &Dialer{
		ws: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
	}
}

// Dial implements console.Dialer.
func (d *Dialer) Dial(ctx context.Context, endpoint string, ev console.Events) console.Transport {
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{cancel: cancel}
	go c.run(ctx, d.ws, endpoint, ev)
	return c
}

// Conn is one websocket transport.
type Conn struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Send writes text as one text frame.
func (c *Conn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return console.ErrClosed
	}
	if c.conn == nil {
		return console.ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close sends a close frame and drops the connection. A dial in progress is
// aborted.
func (c *Conn) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return c.conn.Close()
}

func (c *Conn) run(ctx context.Context, d *websocket.Dialer, endpoint string, ev console.Events) {
	conn, _, err := d.DialContext(ctx, endpoint, nil)
	if err != nil {
		if ctx.Err() == nil {
			ev.OnError(fmt.Errorf("dial %s: %w", endpoint, err))
		}
		ev.OnClose(websocket.CloseAbnormalClosure)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		ev.OnClose(websocket.CloseNormalClosure)
		return
	}
	c.conn = conn
	c.mu.Unlock()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	ev.OnOpen()
	c.readLoop(ctx, conn, ev)
}

func (c *Conn) readLoop(ctx context.Context, conn *websocket.Conn, ev console.Events) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			ev.OnClose(c.closeCode(ctx, err, ev))
			return
		}
		conn.SetReadDeadline(time.Now().Add(pingWait))
		ev.OnMessage(string(message))
	}
}

// closeCode maps a read error to the close code reported to the console.
// Unexpected failures are reported through OnError first.
func (c *Conn) closeCode(ctx context.Context, err error, ev console.Events) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.Printf("transport: server closed with code %d: %s", ce.Code, ce.Text)
		}
		return ce.Code
	}
	if ctx.Err() != nil {
		return websocket.CloseNormalClosure
	}
	ev.OnError(fmt.Errorf("read message: %w", err))
	return websocket.CloseAbnormalClosure
}
