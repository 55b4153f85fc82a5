package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/run365/dashboard-go/internal/service"
	"github.com/run365/dashboard-go/pkg/response"
)

// WorkoutHandler handles the user's workout history
type WorkoutHandler struct {
	workoutService *service.WorkoutService
}

// NewWorkoutHandler creates a new workout handler
func NewWorkoutHandler(workoutService *service.WorkoutService) *WorkoutHandler {
	return &WorkoutHandler{
		workoutService: workoutService,
	}
}

// GetWorkouts handles GET /api/v1/me/workouts?month=2024-05&source=Garmin
func (h *WorkoutHandler) GetWorkouts(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		source = c.Query("provider")
	}

	page, err := h.workoutService.GetWorkouts(c.Request.Context(), c.Query("month"), source)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, page)
}
