package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/metrics"
	"github.com/run365/dashboard-go/internal/models"
)

var (
	// ErrRefreshInFlight means a refresh for the runner is already pending
	ErrRefreshInFlight = errors.New("refresh already in progress")

	// ErrUnknownRunner means the runner is not in the engine's snapshot
	ErrUnknownRunner = errors.New("unknown tracked runner")
)

// Backend response codes for a manual refresh
const (
	CodeRefreshOK          = 0
	CodeRefreshTooFrequent = -2
)

// Client performs the backend calls the engine needs
type Client interface {
	RefreshRunner(ctx context.Context, runnerID int64) (*models.RefreshResponse, error)
	SetAutoRefresh(ctx context.Context, runnerID int64, enabled bool) error
}

// Reloader re-fetches the group's runner list and feeds it back through
// Engine.Reconcile.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloaderFunc adapts a function to Reloader
type ReloaderFunc func(ctx context.Context) error

func (f ReloaderFunc) Reload(ctx context.Context) error { return f(ctx) }

// Tone is the severity of a refresh notification
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
)

// Outcome is the user-visible result of a manual refresh
type Outcome struct {
	Tone    Tone   `json:"tone"`
	Color   string `json:"color"`
	Message string `json:"message"`
	Code    *int   `json:"code,omitempty"` // nil when the backend was not reached
}

// RunnerState is the refresh control state of one runner
type RunnerState struct {
	NextRefreshIn int    `json:"nextRefreshIn"`
	Countdown     int    `json:"countdown"`
	Refreshing    bool   `json:"refreshing"`
	CanRefresh    bool   `json:"canRefresh"`
	Label         string `json:"label"`
}

// Engine owns the per-runner cooldown state of one event group: the last
// server snapshot, a local countdown that ticks once a second, and the set
// of runners with a refresh in flight.
//
// The countdown map is written only by Reconcile and Tick.
type Engine struct {
	client   Client
	reloader Reloader

	mu         sync.Mutex
	runners    map[int64]models.TrackedRunner
	countdown  map[int64]int
	refreshing map[int64]bool
	onTick     func()
}

// NewEngine creates an engine. reloader may be nil, in which case the
// caller reconciles on its own after a refresh.
func NewEngine(client Client, reloader Reloader) *Engine {
	return &Engine{
		client:     client,
		reloader:   reloader,
		runners:    make(map[int64]models.TrackedRunner),
		countdown:  make(map[int64]int),
		refreshing: make(map[int64]bool),
	}
}

// OnTick registers a hook called after every Run tick
func (e *Engine) OnTick(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// Reconcile adopts a fresh server snapshot. A positive server value that is
// larger than the local countdown (or has no local countdown) replaces it;
// a value <= 0 clears the local countdown. A smaller positive value leaves
// the local countdown running.
func (e *Engine) Reconcile(runners []models.TrackedRunner) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := make(map[int64]models.TrackedRunner, len(runners))
	for _, r := range runners {
		if r.ID == nil {
			continue
		}
		id := *r.ID
		snapshot[id] = r

		server := r.NextRefreshIn
		local, ok := e.countdown[id]
		switch {
		case server > 0 && (!ok || server > local):
			e.countdown[id] = server
		case server <= 0:
			delete(e.countdown, id)
		}
	}
	e.runners = snapshot
}

// Tick advances every local countdown by one second. Values that would
// reach zero are removed.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, v := range e.countdown {
		if v > 1 {
			e.countdown[id] = v - 1
		} else {
			delete(e.countdown, id)
		}
	}
}

// Run ticks once a second until ctx is done
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
			e.mu.Lock()
			hook := e.onTick
			e.mu.Unlock()
			if hook != nil {
				hook()
			}
		}
	}
}

// Countdown is the seconds left before a manual refresh, falling back to
// the server value when no local countdown runs
func (e *Engine) Countdown(id int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.countdownLocked(id)
}

func (e *Engine) countdownLocked(id int64) int {
	if v, ok := e.countdown[id]; ok {
		return v
	}
	return e.runners[id].NextRefreshIn
}

// CanRefresh reports whether a manual refresh is allowed now. A server
// value of -1 disables refresh whatever the countdown says.
func (e *Engine) CanRefresh(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canRefreshLocked(id)
}

func (e *Engine) canRefreshLocked(id int64) bool {
	r, ok := e.runners[id]
	if !ok || r.NextRefreshIn == models.RefreshDisabled {
		return false
	}
	return e.countdownLocked(id) <= 0
}

// State returns the refresh control state of a runner
func (e *Engine) State(id int64) RunnerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.runners[id]
	st := RunnerState{
		NextRefreshIn: r.NextRefreshIn,
		Countdown:     e.countdownLocked(id),
		Refreshing:    e.refreshing[id],
		CanRefresh:    e.canRefreshLocked(id),
	}
	switch {
	case st.Refreshing:
		st.Label = "..."
	case r.NextRefreshIn == models.RefreshDisabled:
		st.Label = "-"
	case st.Countdown > 0:
		st.Label = fmt.Sprintf("%ds", st.Countdown)
	default:
		st.Label = "刷新"
	}
	return st
}

// ButtonLabel is the text of the runner's refresh button
func (e *Engine) ButtonLabel(id int64) string {
	return e.State(id).Label
}

// Refreshing reports whether a refresh for id is in flight
func (e *Engine) Refreshing(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshing[id]
}

// Refresh asks the backend to re-scrape one runner. A second call for the
// same runner while the first is pending returns ErrRefreshInFlight without
// contacting the backend. The in-flight flag is cleared on every path and
// the group is reloaded afterwards whatever the outcome. Backend failures
// are reported in the Outcome, not as an error.
func (e *Engine) Refresh(ctx context.Context, id int64) (Outcome, error) {
	e.mu.Lock()
	if e.refreshing[id] {
		e.mu.Unlock()
		metrics.RecordRefresh("suppressed")
		return Outcome{}, ErrRefreshInFlight
	}
	if _, ok := e.runners[id]; !ok {
		e.mu.Unlock()
		return Outcome{}, ErrUnknownRunner
	}
	e.refreshing[id] = true
	e.mu.Unlock()

	resp, err := e.callRefresh(ctx, id)

	e.mu.Lock()
	delete(e.refreshing, id)
	e.mu.Unlock()

	outcome := classify(resp, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("runner_id", id).Msg("[RefreshEngine] refresh failed")
	}

	e.reload(ctx)
	return outcome, nil
}

// callRefresh converts a panicking client into an error so the in-flight
// flag is always cleared
func (e *Engine) callRefresh(ctx context.Context, id int64) (resp *models.RefreshResponse, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp, err = nil, fmt.Errorf("refresh panicked: %v", p)
		}
	}()
	return e.client.RefreshRunner(ctx, id)
}

func classify(resp *models.RefreshResponse, err error) Outcome {
	if err != nil || resp == nil {
		metrics.RecordRefresh("failed")
		return Outcome{Tone: ToneError, Color: "red", Message: "刷新失败"}
	}

	code := resp.Code
	out := Outcome{Code: &code}
	switch code {
	case CodeRefreshOK:
		metrics.RecordRefresh("success")
		out.Tone, out.Color, out.Message = ToneSuccess, "green", "刷新成功"
	case CodeRefreshTooFrequent:
		metrics.RecordRefresh("rate_limited")
		out.Tone, out.Color, out.Message = ToneWarning, "yellow", "刷新太频繁"
	default:
		metrics.RecordRefresh("failed")
		out.Tone, out.Color, out.Message = ToneError, "red", "刷新失败"
	}
	if resp.Msg != "" {
		out.Message = resp.Msg
	}
	return out
}

// ToggleAutoRefresh switches a runner's automatic refresh on the backend,
// then reloads. Nothing changes locally until the reload reports the new
// value; on failure the previous state stays as it was.
func (e *Engine) ToggleAutoRefresh(ctx context.Context, id int64, enabled bool) error {
	e.mu.Lock()
	_, ok := e.runners[id]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownRunner
	}

	if err := e.client.SetAutoRefresh(ctx, id, enabled); err != nil {
		return fmt.Errorf("failed to set auto refresh: %w", err)
	}
	e.reload(ctx)
	return nil
}

func (e *Engine) reload(ctx context.Context) {
	if e.reloader == nil {
		return
	}
	if err := e.reloader.Reload(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("[RefreshEngine] reload after refresh failed")
	}
}

// Runner returns the snapshot entry of a runner
func (e *Engine) Runner(id int64) (models.TrackedRunner, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runners[id]
	return r, ok
}
