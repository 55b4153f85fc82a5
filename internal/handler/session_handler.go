package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/run365/dashboard-go/internal/middleware"
	"github.com/run365/dashboard-go/internal/service"
	"github.com/run365/dashboard-go/pkg/response"
)

// SessionHandler handles login state of the browser session
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

type loginRequest struct {
	Token   string `json:"token" binding:"required"`
	Refresh string `json:"refresh"`
}

// Login handles POST /api/v1/session
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token is required")
		return
	}

	if err := h.sessionService.Login(c.Request.Context(), middleware.SessionID(c), req.Token, req.Refresh); err != nil {
		respondError(c, err)
		return
	}

	h.GetSession(c)
}

// Logout handles DELETE /api/v1/session
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessionService.Logout(c.Request.Context(), middleware.SessionID(c)); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, nil)
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	status, err := h.sessionService.GetStatus(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, status)
}
