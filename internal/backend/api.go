package backend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/run365/dashboard-go/internal/models"
)

// GetEvent fetches the event snapshot with its groups
func (c *Client) GetEvent(ctx context.Context, id string) (*models.EventData, error) {
	var ev models.EventData
	if err := c.do(ctx, http.MethodGet, "/api/v2/events/"+url.PathEscape(id)+"/", nil, &ev); err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return &ev, nil
}

// RefreshRunner triggers a manual refresh. A -2 code comes back as a
// normal response, not an error.
func (c *Client) RefreshRunner(ctx context.Context, runnerID int64) (*models.RefreshResponse, error) {
	var resp models.RefreshResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tracked-runners/%d/refresh/", runnerID), struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to refresh runner %d: %w", runnerID, err)
	}
	return &resp, nil
}

// SetAutoRefresh toggles the backend's automatic refresh for a runner
func (c *Client) SetAutoRefresh(ctx context.Context, runnerID int64, enabled bool) error {
	body := map[string]bool{"isAutoRefresh": enabled}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tracked-runners/%d/", runnerID), body, nil); err != nil {
		return fmt.Errorf("failed to set auto refresh of runner %d: %w", runnerID, err)
	}
	return nil
}

func (c *Client) CreateTrackedRunner(ctx context.Context, in models.TrackedRunnerInput) (*models.TrackedRunner, error) {
	var r models.TrackedRunner
	if err := c.do(ctx, http.MethodPost, "/tracked-runners/", in, &r); err != nil {
		return nil, fmt.Errorf("failed to create tracked runner: %w", err)
	}
	return &r, nil
}

func (c *Client) UpdateTrackedRunner(ctx context.Context, runnerID int64, in models.TrackedRunnerInput) (*models.TrackedRunner, error) {
	var r models.TrackedRunner
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tracked-runners/%d/", runnerID), in, &r); err != nil {
		return nil, fmt.Errorf("failed to update tracked runner %d: %w", runnerID, err)
	}
	return &r, nil
}

func (c *Client) DeleteTrackedRunner(ctx context.Context, runnerID int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/tracked-runners/%d/", runnerID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete tracked runner %d: %w", runnerID, err)
	}
	return nil
}

// GetMe returns the logged in user with their bound accounts
func (c *Client) GetMe(ctx context.Context) (*models.UserInfo, error) {
	var u models.UserInfo
	if err := c.do(ctx, http.MethodGet, "/api/v2/users/me/", nil, &u); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &u, nil
}

// DeleteThirdPartyAccount unbinds a device account
func (c *Client) DeleteThirdPartyAccount(ctx context.Context, accountID int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v2/third-party-accounts/%d/", accountID), nil, nil); err != nil {
		return fmt.Errorf("failed to unbind account %d: %w", accountID, err)
	}
	return nil
}

// GetWorkouts lists the user's workouts of one month ("2006-01"), optionally
// filtered by source. The backend answers with a bare list or a paginated
// {"results": [...]} page.
func (c *Client) GetWorkouts(ctx context.Context, month, source string) ([]models.Workout, error) {
	q := url.Values{"month": {month}}
	if source != "" {
		q.Set("source", source)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v2/myWorkouts/?"+q.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to get workouts of %s: %w", month, err)
	}
	workouts, err := decodeWorkouts(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workouts of %s: %w", month, err)
	}
	return workouts, nil
}

func decodeWorkouts(raw json.RawMessage) ([]models.Workout, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []models.Workout{}, nil
	}

	if raw[0] == '[' {
		var list []models.Workout
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var page struct {
		Results []models.Workout `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		return []models.Workout{}, nil
	}
	return page.Results, nil
}
