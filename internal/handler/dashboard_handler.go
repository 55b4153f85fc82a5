package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/middleware"
	"github.com/run365/dashboard-go/internal/service"
	"github.com/run365/dashboard-go/pkg/response"
)

// DashboardHandler handles HTTP requests for event dashboards
type DashboardHandler struct {
	dashboardService *service.DashboardService
	upgrader         websocket.Upgrader
}

// NewDashboardHandler creates a new dashboard handler. Stream upgrades are
// accepted from the given origins; "*" accepts any.
func NewDashboardHandler(dashboardService *service.DashboardService, origins []string) *DashboardHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &DashboardHandler{
		dashboardService: dashboardService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// GetDashboard handles GET /api/v1/events/:id/dashboard
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	eventID := c.Param("id")

	var groupID int64
	if g := c.Query("group"); g != "" {
		id, err := strconv.ParseInt(g, 10, 64)
		if err != nil || id <= 0 {
			response.BadRequest(c, "Invalid group ID")
			return
		}
		groupID = id
	}
	visible, ok := parseVisibility(c)
	if !ok {
		response.BadRequest(c, "Invalid runners parameter")
		return
	}

	snap, err := h.dashboardService.GetDashboard(c.Request.Context(), middleware.SessionID(c), eventID, groupID, visible)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, snap)
}

// GetGroupView handles GET /api/v1/events/:id/groups/:gid/view
func (h *DashboardHandler) GetGroupView(c *gin.Context) {
	groupID, ok := parseID(c, "gid")
	if !ok {
		response.BadRequest(c, "Invalid group ID")
		return
	}
	visible, ok := parseVisibility(c)
	if !ok {
		response.BadRequest(c, "Invalid runners parameter")
		return
	}

	view, err := h.dashboardService.GetGroupView(c.Request.Context(), middleware.SessionID(c), c.Param("id"), groupID, visible)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, view)
}

// RefreshRunner handles POST /api/v1/events/:id/runners/:rid/refresh
func (h *DashboardHandler) RefreshRunner(c *gin.Context) {
	runnerID, ok := parseID(c, "rid")
	if !ok {
		response.BadRequest(c, "Invalid runner ID")
		return
	}

	outcome, err := h.dashboardService.RefreshRunner(c.Request.Context(), middleware.SessionID(c), c.Param("id"), runnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, outcome)
}

type autoRefreshRequest struct {
	IsAutoRefresh *bool `json:"isAutoRefresh" binding:"required"`
}

// SetAutoRefresh handles PATCH /api/v1/events/:id/runners/:rid/auto-refresh
func (h *DashboardHandler) SetAutoRefresh(c *gin.Context) {
	runnerID, ok := parseID(c, "rid")
	if !ok {
		response.BadRequest(c, "Invalid runner ID")
		return
	}
	var req autoRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	err := h.dashboardService.SetAutoRefresh(c.Request.Context(), middleware.SessionID(c), c.Param("id"), runnerID, *req.IsAutoRefresh)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"isAutoRefresh": *req.IsAutoRefresh})
}

// Stream handles GET /ws/events/:id
func (h *DashboardHandler) Stream(c *gin.Context) {
	sid := middleware.SessionID(c)
	view, release, err := h.dashboardService.Attach(c.Request.Context(), sid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("[Dashboard] websocket upgrade failed")
		return
	}
	h.dashboardService.Stream(c.Request.Context(), conn, sid, view)
}
