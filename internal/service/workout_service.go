package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/workout"
)

var ErrInvalidMonth = errors.New("month must be YYYY-MM")

// WorkoutBackend lists the user's workouts
type WorkoutBackend interface {
	GetWorkouts(ctx context.Context, month, source string) ([]models.Workout, error)
}

// WorkoutPage is one month of workout history with its filters
type WorkoutPage struct {
	Month       string           `json:"month"`
	Source      string           `json:"source"`
	Months      []workout.Option `json:"months"`
	Sources     []workout.Option `json:"sources"`
	Workouts    []workout.Row    `json:"workouts"`
	Placeholder string           `json:"placeholder,omitempty"`
}

// WorkoutService serves the workout history table
type WorkoutService struct {
	backend WorkoutBackend
	loc     *time.Location
	now     func() time.Time
}

// NewWorkoutService creates a new workout service; months are counted in loc
func NewWorkoutService(backend WorkoutBackend, loc *time.Location) *WorkoutService {
	if loc == nil {
		loc = time.Local
	}
	return &WorkoutService{backend: backend, loc: loc, now: time.Now}
}

// GetWorkouts returns the workouts of month ("" for the current month),
// filtered by source when it is set
func (s *WorkoutService) GetWorkouts(ctx context.Context, month, source string) (*WorkoutPage, error) {
	now := s.now().In(s.loc)
	if month == "" {
		month = now.Format(workout.MonthLayout)
	}
	month, ok := workout.ParseMonth(month)
	if !ok {
		return nil, ErrInvalidMonth
	}

	list, err := s.backend.GetWorkouts(ctx, month, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get workouts: %w", err)
	}

	page := &WorkoutPage{
		Month:    month,
		Source:   source,
		Months:   workout.MonthOptions(now),
		Sources:  workout.SourceOptions(),
		Workouts: make([]workout.Row, 0, len(list)),
	}
	for _, w := range list {
		page.Workouts = append(page.Workouts, workout.BuildRow(w))
	}
	if len(page.Workouts) == 0 {
		page.Placeholder = workout.EmptyText
	}
	return page, nil
}
