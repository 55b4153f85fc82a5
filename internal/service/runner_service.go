package service

import (
	"context"
	"fmt"

	"github.com/run365/dashboard-go/internal/models"
)

// RunnerBackend manages tracked runners on the backend
type RunnerBackend interface {
	CreateTrackedRunner(ctx context.Context, in models.TrackedRunnerInput) (*models.TrackedRunner, error)
	UpdateTrackedRunner(ctx context.Context, runnerID int64, in models.TrackedRunnerInput) (*models.TrackedRunner, error)
	DeleteTrackedRunner(ctx context.Context, runnerID int64) error
}

// RunnerService handles tracked runner CRUD
type RunnerService struct {
	backend RunnerBackend
}

// NewRunnerService creates a new runner service
func NewRunnerService(backend RunnerBackend) *RunnerService {
	return &RunnerService{backend: backend}
}

// CreateRunner starts tracking a runner
func (s *RunnerService) CreateRunner(ctx context.Context, in models.TrackedRunnerInput) (*models.TrackedRunner, error) {
	if in.Status == "" {
		in.Status = models.StatusNotStarted
	}
	runner, err := s.backend.CreateTrackedRunner(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracked runner: %w", err)
	}
	return runner, nil
}

// UpdateRunner edits a tracked runner
func (s *RunnerService) UpdateRunner(ctx context.Context, runnerID int64, in models.TrackedRunnerInput) (*models.TrackedRunner, error) {
	runner, err := s.backend.UpdateTrackedRunner(ctx, runnerID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update tracked runner: %w", err)
	}
	return runner, nil
}

// DeleteRunner stops tracking a runner
func (s *RunnerService) DeleteRunner(ctx context.Context, runnerID int64) error {
	if err := s.backend.DeleteTrackedRunner(ctx, runnerID); err != nil {
		return fmt.Errorf("failed to delete tracked runner: %w", err)
	}
	return nil
}
