package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/gangaflow/console/internal/ws"
)

// TerminalPath is where the terminal websocket is served.
const TerminalPath = "/ws/terminal/"

// TerminalHandler serves the terminal websocket: each connection gets its
// own shell.
type TerminalHandler struct {
	wsHandler *ws.Handler
}

// NewTerminalHandler creates a new TerminalHandler.
func NewTerminalHandler(wsHandler *ws.Handler) *TerminalHandler {
	return &TerminalHandler{wsHandler: wsHandler}
}

// Connect handles WS /ws/terminal/.
func (h *TerminalHandler) Connect(c *gin.Context) {
	if err := h.wsHandler.HandleConnection(c.Writer, c.Request); err != nil {
		// The upgrader has already written the HTTP error.
		log.Printf("Terminal upgrade from %s failed: %v", c.Request.RemoteAddr, err)
	}
}

// RegisterRoutes registers the terminal route on a Gin engine or group.
func (h *TerminalHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET(TerminalPath, h.Connect)
}
