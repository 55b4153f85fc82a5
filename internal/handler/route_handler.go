package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/run365/dashboard-go/internal/service"
	"github.com/run365/dashboard-go/pkg/response"
)

// RouteHandler handles HTTP requests for route files
type RouteHandler struct {
	routeService *service.RouteService
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(routeService *service.RouteService) *RouteHandler {
	return &RouteHandler{
		routeService: routeService,
	}
}

// ProxyRouteFile handles GET /api/v2/route-file-proxy
func (h *RouteHandler) ProxyRouteFile(c *gin.Context) {
	fileURL := c.Query("url")
	if fileURL == "" {
		response.BadRequest(c, "url is required")
		return
	}

	data, err := h.routeService.ProxyFile(c.Request.Context(), fileURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

// GetRouteProfile handles GET /api/v1/routes/profile
func (h *RouteHandler) GetRouteProfile(c *gin.Context) {
	fileURL := c.Query("url")
	if fileURL == "" {
		response.BadRequest(c, "url is required")
		return
	}

	p, err := h.routeService.GetProfile(c.Request.Context(), fileURL)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, p)
}
