package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/run365/dashboard-go/internal/dashboard"
	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/render"
	"github.com/run365/dashboard-go/internal/tracking"
)

// DashboardService drives the per-session event views
type DashboardService struct {
	manager *dashboard.Manager
	hub     *dashboard.Hub
	mapWait time.Duration
}

// NewDashboardService creates a new dashboard service. mapWait bounds how
// long a request waits for the active route to load before answering with
// the loading state.
func NewDashboardService(manager *dashboard.Manager, hub *dashboard.Hub, mapWait time.Duration) *DashboardService {
	return &DashboardService{
		manager: manager,
		hub:     hub,
		mapWait: mapWait,
	}
}

// GetDashboard renders the event dashboard. A non-zero groupID selects
// that route tab first.
func (s *DashboardService) GetDashboard(ctx context.Context, sid, eventID string, groupID int64, visible tracking.Visibility) (*dashboard.Snapshot, error) {
	view, release, err := s.manager.Acquire(ctx, sid, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to open dashboard: %w", err)
	}
	defer release()

	if groupID != 0 {
		if err := view.SelectTab(groupID); err != nil {
			return nil, err
		}
	}
	s.waitMap(ctx, view)

	snap := view.Render(visible)
	return &snap, nil
}

// GetGroupView renders the map and chart of one route group
func (s *DashboardService) GetGroupView(ctx context.Context, sid, eventID string, groupID int64, visible tracking.Visibility) (*render.GroupView, error) {
	snap, err := s.GetDashboard(ctx, sid, eventID, groupID, visible)
	if err != nil {
		return nil, err
	}
	if snap.Group == nil {
		return nil, fmt.Errorf("%w: %d", dashboard.ErrUnknownGroup, groupID)
	}
	return snap.Group, nil
}

func (s *DashboardService) waitMap(ctx context.Context, view *dashboard.View) {
	if s.mapWait <= 0 {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, s.mapWait)
	defer cancel()
	if err := view.WaitMap(wctx); errors.Is(err, context.DeadlineExceeded) {
		logging.Ctx(ctx).Debug().Str("event_id", view.EventID()).Msg("[Dashboard] answering before route loaded")
	}
}

// RefreshRunner runs a manual refresh of one runner
func (s *DashboardService) RefreshRunner(ctx context.Context, sid, eventID string, runnerID int64) (tracking.Outcome, error) {
	view, release, err := s.manager.Acquire(ctx, sid, eventID)
	if err != nil {
		return tracking.Outcome{}, fmt.Errorf("failed to open dashboard: %w", err)
	}
	defer release()
	return view.Refresh(ctx, runnerID)
}

// SetAutoRefresh switches a runner's automatic refresh
func (s *DashboardService) SetAutoRefresh(ctx context.Context, sid, eventID string, runnerID int64, enabled bool) error {
	view, release, err := s.manager.Acquire(ctx, sid, eventID)
	if err != nil {
		return fmt.Errorf("failed to open dashboard: %w", err)
	}
	defer release()
	return view.ToggleAutoRefresh(ctx, runnerID, enabled)
}

// Attach opens the view a stream will serve. The release func must be
// called when the stream ends.
func (s *DashboardService) Attach(ctx context.Context, sid, eventID string) (*dashboard.View, func(), error) {
	view, release, err := s.manager.Acquire(ctx, sid, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dashboard: %w", err)
	}
	return view, release, nil
}

// Stream serves an upgraded connection until it closes
func (s *DashboardService) Stream(ctx context.Context, conn *websocket.Conn, sid string, view *dashboard.View) {
	dashboard.Stream(ctx, conn, s.hub, s.manager, sid, view)
}
