package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/service"
	"github.com/run365/dashboard-go/pkg/response"
)

// RunnerHandler handles HTTP requests for tracked runners
type RunnerHandler struct {
	runnerService *service.RunnerService
}

// NewRunnerHandler creates a new runner handler
func NewRunnerHandler(runnerService *service.RunnerService) *RunnerHandler {
	return &RunnerHandler{
		runnerService: runnerService,
	}
}

// CreateRunner handles POST /api/v1/tracked-runners
func (h *RunnerHandler) CreateRunner(c *gin.Context) {
	var in models.TrackedRunnerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid tracked runner: "+err.Error())
		return
	}

	runner, err := h.runnerService.CreateRunner(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, runner)
}

// UpdateRunner handles PATCH /api/v1/tracked-runners/:rid
func (h *RunnerHandler) UpdateRunner(c *gin.Context) {
	runnerID, ok := parseID(c, "rid")
	if !ok {
		response.BadRequest(c, "Invalid runner ID")
		return
	}
	var in models.TrackedRunnerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid tracked runner: "+err.Error())
		return
	}

	runner, err := h.runnerService.UpdateRunner(c.Request.Context(), runnerID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, runner)
}

// DeleteRunner handles DELETE /api/v1/tracked-runners/:rid
func (h *RunnerHandler) DeleteRunner(c *gin.Context) {
	runnerID, ok := parseID(c, "rid")
	if !ok {
		response.BadRequest(c, "Invalid runner ID")
		return
	}

	if err := h.runnerService.DeleteRunner(c.Request.Context(), runnerID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, nil)
}
