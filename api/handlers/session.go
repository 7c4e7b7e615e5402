// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gangaflow/console/internal/model"
	"github.com/gangaflow/console/internal/recording"
	"github.com/gangaflow/console/internal/sanitize"
	"github.com/gangaflow/console/internal/session"
)

// defaultListLimit caps GET /api/sessions when no limit is given.
const defaultListLimit = 100

// SessionHandler handles HTTP requests for session management.
type SessionHandler struct {
	sessionManager *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionManager *session.Manager) *SessionHandler {
	return &SessionHandler{
		sessionManager: sessionManager,
	}
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID           string  `json:"id"`
	Shell        string  `json:"shell"`
	Status       string  `json:"status"`
	ExitCode     *int    `json:"exitCode,omitempty"`
	PID          *int    `json:"pid,omitempty"`
	RemoteAddr   string  `json:"remoteAddr"`
	HasRecording bool    `json:"hasRecording"`
	PreviewLine  string  `json:"previewLine,omitempty"`
	Duration     string  `json:"duration"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
	EndedAt      *string `json:"endedAt,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func toSessionResponse(s *model.ShellSession) *SessionResponse {
	resp := &SessionResponse{
		ID:           s.ID,
		Shell:        s.Shell,
		Status:       string(s.Status),
		ExitCode:     s.ExitCode,
		PID:          s.PID,
		RemoteAddr:   s.RemoteAddr,
		HasRecording: s.RecordingPath != "",
		PreviewLine:  sanitize.Strip(s.PreviewLine),
		Duration:     formatDuration(s.Duration()),
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
	}
	if s.EndedAt != nil {
		ended := s.EndedAt.Format(time.RFC3339)
		resp.EndedAt = &ended
	}
	return resp
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return time.Duration(h*time.Hour + m*time.Minute + s*time.Second).String()
	}
	if m > 0 {
		return time.Duration(m*time.Minute + s*time.Second).String()
	}
	return time.Duration(s * time.Second).String()
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// sendSessionError maps session lookup errors onto responses.
func sendSessionError(c *gin.Context, sessionID, action string, err error) {
	if errors.Is(err, model.ErrSessionNotFound) {
		sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
		return
	}
	sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action+": "+err.Error())
}

// List handles GET /api/sessions - lists the most recent sessions.
func (h *SessionHandler) List(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.sessionManager.List(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sessions: "+err.Error())
		return
	}

	response := make([]*SessionResponse, len(sessions))
	for i, sess := range sessions {
		response[i] = toSessionResponse(sess)
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/sessions/:id - gets a specific session.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")

	sess, err := h.sessionManager.Get(c.Request.Context(), sessionID)
	if err != nil {
		sendSessionError(c, sessionID, "get session", err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// Delete handles DELETE /api/sessions/:id - kills a live shell and removes
// the session with its recording.
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.sessionManager.Delete(c.Request.Context(), sessionID); err != nil {
		sendSessionError(c, sessionID, "delete session", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetLogs handles GET /api/sessions/:id/logs - downloads the session's
// asciicast recording, or with ?format=text a plain transcript of its output.
func (h *SessionHandler) GetLogs(c *gin.Context) {
	sessionID := c.Param("id")

	path, err := h.sessionManager.Recording(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, model.ErrRecordingNotFound) {
			sendError(c, http.StatusNotFound, "LOG_NOT_FOUND", "Log file not found for session "+sessionID)
			return
		}
		sendSessionError(c, sessionID, "get session", err)
		return
	}

	switch c.DefaultQuery("format", "cast") {
	case "cast":
		c.Header("Content-Type", "application/x-asciicast")
		c.Header("Content-Disposition", "attachment; filename="+sessionID+".cast")
		c.File(path)
	case "text":
		f, err := os.Open(path)
		if err != nil {
			sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to open log: "+err.Error())
			return
		}
		defer f.Close()

		_, events, err := recording.Read(f)
		if err != nil {
			sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read log: "+err.Error())
			return
		}
		c.String(http.StatusOK, sanitize.Strip(recording.Transcript(events)))
	default:
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "format must be cast or text")
	}
}

// ResizeRequest is the body of POST /api/sessions/:id/resize.
type ResizeRequest struct {
	Rows uint16 `json:"rows" binding:"required,min=1"`
	Cols uint16 `json:"cols" binding:"required,min=1"`
}

// Resize handles POST /api/sessions/:id/resize - changes a running shell's
// terminal size.
func (h *SessionHandler) Resize(c *gin.Context) {
	sessionID := c.Param("id")

	var req ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "rows and cols must be positive integers")
		return
	}

	if err := h.sessionManager.Resize(sessionID, req.Rows, req.Cols); err != nil {
		sendSessionError(c, sessionID, "resize session", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.GET("/:id/logs", h.GetLogs)
		sessions.POST("/:id/resize", h.Resize)
	}
}
