package snippets

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gangaflow/console/internal/bus"
	"github.com/gangaflow/console/internal/console"
)

// RunRequest is the body of POST /api/snippets. Exactly one of Code and Name
// is set; Name refers to a catalogue entry.
type RunRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Handler publishes snippet requests arriving over HTTP.
type Handler struct {
	topic     *bus.Topic[console.SnippetRequest]
	catalogue []Snippet
}

// NewHandler creates a Handler publishing on topic.
func NewHandler(topic *bus.Topic[console.SnippetRequest], catalogue []Snippet) *Handler {
	return &Handler{topic: topic, catalogue: catalogue}
}

func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{"error": gin.H{"code": code, "message": message}})
}

// Run handles POST /api/snippets.
func (h *Handler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	code := req.Code
	switch {
	case req.Name != "" && req.Code != "":
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Set either code or name, not both")
		return
	case req.Name != "":
		s, ok := Find(h.catalogue, req.Name)
		if !ok {
			sendError(c, http.StatusNotFound, "SNIPPET_NOT_FOUND", "Snippet "+req.Name+" not found")
			return
		}
		code = s.Code
	case strings.TrimSpace(req.Code) == "":
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "code is required")
		return
	}

	if n := h.topic.Publish(console.SnippetRequest{Code: code}); n == 0 {
		sendError(c, http.StatusServiceUnavailable, "NO_CONSOLE", "No console is listening for snippets")
		return
	}
	c.Status(http.StatusAccepted)
}

// List handles GET /api/snippets.
func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalogue)
}

// RegisterRoutes registers the snippet routes.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/api/snippets", h.List)
	r.POST("/api/snippets", h.Run)
}

// Serve runs the injection listener on addr until ctx is done.
func Serve(ctx context.Context, addr string, h *Handler) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Snippet listener on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
