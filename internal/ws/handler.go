package ws

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gangaflow/console/internal/model"
	"github.com/gangaflow/console/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// Banner lines sent to the console. Each ends the line it opens.
const (
	bannerStarted = "[GangaFlow] Shell started (%s). Type commands below or ask GangaBot.\r\n"
	bannerFailed  = "[GangaFlow] Failed to start shell: %v\r\n"
	bannerEnded   = "\r\n[GangaFlow] Shell session ended.\r\n"
)

// Handler bridges websocket connections to shells: one fresh shell per
// connection, killed when the connection goes away.
type Handler struct {
	sessions *session.Manager
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*Client]struct{}
	shutdown bool
}

// NewHandler creates a new websocket handler.
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Any origin until SetCheckOrigin restricts it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
}

// SetCheckOrigin sets a custom origin checker for the upgrader.
func (h *Handler) SetCheckOrigin(fn func(r *http.Request) bool) {
	h.upgrader.CheckOrigin = fn
}

// HandleConnection upgrades the request and starts a shell for it. Shell
// output is relayed as text frames; inbound frames are written to the shell
// unchanged.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn)
	if !h.register(client) {
		client.CloseWith(websocket.CloseGoingAway, "server shutting down")
		go h.writePump(client)
		return nil
	}
	go h.writePump(client)

	// Output waits for the greeting so the banner is always the first line.
	greeted := make(chan struct{})
	sess, err := h.sessions.Start(r.Context(), session.StartOptions{
		RemoteAddr: r.RemoteAddr,
		OnOutput: func(text string) {
			<-greeted
			client.SendText(text)
		},
		OnExit: func(s *model.ShellSession) {
			client.SendText(bannerEnded)
			client.CloseWith(websocket.CloseNormalClosure, "shell exited")
		},
	})
	if err != nil {
		close(greeted)
		log.Printf("Failed to start shell for %s: %v", r.RemoteAddr, err)
		client.SendText(fmt.Sprintf(bannerFailed, err))
		code := websocket.CloseInternalServerErr
		if errors.Is(err, model.ErrConcurrencyLimit) {
			code = websocket.CloseTryAgainLater
		}
		client.CloseWith(code, "shell unavailable")
		go h.drain(client)
		return nil
	}

	client.SendText(fmt.Sprintf(bannerStarted, sess.Shell))
	close(greeted)

	go h.readPump(client, sess.ID)
	return nil
}

func (h *Handler) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Handler) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

// ClientCount returns the number of open connections.
func (h *Handler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every connection with "going away" and refuses new ones.
// Their shells are killed as the connections end.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	h.shutdown = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.CloseWith(websocket.CloseGoingAway, "server shutting down")
	}
}

// readPump writes inbound frames to the shell until the connection ends,
// then kills the shell.
func (h *Handler) readPump(client *Client, sessionID string) {
	conn := client.Conn()
	defer func() {
		if err := h.sessions.Kill(sessionID); err != nil && !errors.Is(err, model.ErrSessionNotFound) {
			log.Printf("Session %s: failed to kill shell: %v", sessionID, err)
		}
		h.unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Printf("Session %s: websocket error: %v", sessionID, err)
			}
			return
		}
		if len(message) == 0 {
			continue
		}
		if err := h.sessions.Write(sessionID, message); err != nil {
			// The shell is gone; the exit handler closes the connection.
			if !errors.Is(err, model.ErrSessionNotFound) {
				log.Printf("Session %s: failed to write to shell: %v", sessionID, err)
			}
		}
	}
}

// drain reads until the peer acknowledges the close frame, for connections
// that never got a shell.
func (h *Handler) drain(client *Client) {
	conn := client.Conn()
	defer func() {
		h.unregister(client)
		conn.Close()
	}()
	conn.SetReadDeadline(time.Now().Add(writeWait))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends queued frames and keeps the connection alive with pings.
func (h *Handler) writePump(client *Client) {
	conn := client.Conn()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case f, ok := <-client.queue():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if f.close {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(f.code, f.reason))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f.text)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
