package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"train-design-backend/internal/models"
	"train-design-backend/internal/store"
)

type SessionsHandler struct {
	sessions store.SessionRegistry
}

func NewSessionsHandler(sessions store.SessionRegistry) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// ListSessions godoc
// @Summary     List design sessions
// @Description Returns the caller's sessions, most recently updated first.
// @Tags        sessions
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SessionListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /sessions [get]
func (h *SessionsHandler) ListSessions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.List(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list sessions",
			Message: err.Error(),
		})
		return
	}

	out := make([]models.SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = models.NewSessionResponse(&sessions[i])
	}
	c.JSON(http.StatusOK, models.SessionListResponse{Sessions: out})
}

// CreateSession godoc
// @Summary     Create a design session
// @Description Creates a session and makes it the caller's active one.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateSessionRequest true "Session name and optional description"
// @Success     200 {object} models.SessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /sessions [post]
func (h *SessionsHandler) CreateSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	session, err := h.sessions.Create(userID, req.Name, req.Description, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create session",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.NewSessionResponse(session))
}

// GetActiveSession godoc
// @Summary     Get the active session
// @Description Returns the caller's active session, or null when none exists.
// @Tags        sessions
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SessionResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /sessions/active [get]
func (h *SessionsHandler) GetActiveSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	session, err := h.sessions.GetActive(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load active session",
			Message: err.Error(),
		})
		return
	}
	if session == nil {
		c.JSON(http.StatusOK, nil)
		return
	}

	c.JSON(http.StatusOK, models.NewSessionResponse(session))
}

// ActivateSession godoc
// @Summary     Activate a session
// @Description Makes the given session the caller's single active one.
// @Tags        sessions
// @Produce     json
// @Security    Bearer
// @Param       session_id path int true "Session id"
// @Success     200 {object} map[string]bool
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/activate [post]
func (h *SessionsHandler) ActivateSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid session id"})
		return
	}

	err = h.sessions.SetActive(userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to activate session",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
