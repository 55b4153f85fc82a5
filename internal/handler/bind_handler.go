package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/run365/dashboard-go/internal/bind"
	"github.com/run365/dashboard-go/internal/middleware"
	"github.com/run365/dashboard-go/internal/service"
	"github.com/run365/dashboard-go/pkg/response"
)

// BindHandler handles third-party account binding
type BindHandler struct {
	bindService *service.BindService
}

// NewBindHandler creates a new bind handler
func NewBindHandler(bindService *service.BindService) *BindHandler {
	return &BindHandler{
		bindService: bindService,
	}
}

// GetProviders handles GET /api/v1/bind
func (h *BindHandler) GetProviders(c *gin.Context) {
	response.Success(c, h.bindService.GetProviders())
}

// BeginBind handles GET /api/v1/bind/:provider
func (h *BindHandler) BeginBind(c *gin.Context) {
	start, err := h.bindService.Begin(c.Param("provider"), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, start)
}

// BindCallback handles GET /api/v1/bind/:provider/callback
func (h *BindHandler) BindCallback(c *gin.Context) {
	var cb bind.Callback
	if err := c.ShouldBindQuery(&cb); err != nil {
		response.BadRequest(c, "Invalid callback parameters")
		return
	}

	out, err := h.bindService.Complete(c.Request.Context(), c.Param("provider"), middleware.SessionID(c), cb)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, out)
}

// GetAccounts handles GET /api/v1/me/accounts
func (h *BindHandler) GetAccounts(c *gin.Context) {
	accounts, err := h.bindService.GetAccounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, accounts)
}

// Unbind handles DELETE /api/v1/me/accounts/:aid
func (h *BindHandler) Unbind(c *gin.Context) {
	accountID, ok := parseID(c, "aid")
	if !ok {
		response.BadRequest(c, "Invalid account ID")
		return
	}

	if err := h.bindService.Unbind(c.Request.Context(), accountID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, nil)
}
