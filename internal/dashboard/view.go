// Package dashboard assembles the event dashboard: the route tabs with the
// active group's map and chart, the tracked-runner tables with their
// refresh engines, and the stream of updates pushed to connected clients.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/render"
	"github.com/run365/dashboard-go/internal/tracking"
)

var (
	ErrUnknownGroup = errors.New("unknown event group")
	ErrViewClosed   = errors.New("dashboard view closed")
)

const (
	NoGroupsText = "暂无组别信息"
	dateLayout   = "2006-01-02 15:04"
)

// EventSource fetches event snapshots
type EventSource interface {
	GetEvent(ctx context.Context, id string) (*models.EventData, error)
}

// Deps are the collaborators shared by every view
type Deps struct {
	Events      EventSource
	Runners     tracking.Client
	Routes      render.RouteLoader
	Tiles       render.TileLayer
	SettleDelay time.Duration
	Location    *time.Location
}

// Tab is one selectable route group
type Tab struct {
	GroupID int64  `json:"groupId"`
	Name    string `json:"name"`
}

// EventHeader is the event summary above the map
type EventHeader struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	EnName   string `json:"enName,omitempty"`
	Date     string `json:"date"`
	Location string `json:"location"`
}

// Snapshot is everything a client needs to draw the dashboard
type Snapshot struct {
	Event       EventHeader       `json:"event"`
	Tabs        []Tab             `json:"tabs"`
	ActiveGroup int64             `json:"activeGroup,omitempty"`
	Group       *render.GroupView `json:"group,omitempty"`
	Tables      []tracking.Table  `json:"tables"`
	Placeholder string            `json:"placeholder,omitempty"`
}

type groupEngine struct {
	engine *tracking.Engine
	stop   context.CancelFunc
}

// View is the live dashboard of one event for one session. It owns a
// refresh engine per group and the map handle of the active tab. Only one
// map handle is alive at a time: the previous one is released before the
// next is acquired.
type View struct {
	eventID string
	deps    Deps
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dirty   chan struct{}
	reloads atomic.Uint64

	mu       sync.Mutex
	applied  uint64 // sequence number of the snapshot in event
	event    *models.EventData
	engines  map[int64]*groupEngine
	active   int64
	handle   *render.MapHandle
	visible  tracking.Visibility
	onChange func()
	closed   bool
}

// Open fetches the event and starts its engines. The view outlives ctx but
// keeps its values, so the session token stays available to background
// reloads and route loads.
func Open(ctx context.Context, eventID string, deps Deps) (*View, error) {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	vctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v := &View{
		eventID: eventID,
		deps:    deps,
		ctx:     vctx,
		cancel:  cancel,
		dirty:   make(chan struct{}, 1),
		engines: make(map[int64]*groupEngine),
	}

	if err := v.Reload(ctx); err != nil {
		cancel()
		return nil, err
	}

	v.wg.Add(1)
	go v.pump()
	return v, nil
}

// EventID is the event this view shows
func (v *View) EventID() string {
	return v.eventID
}

// OnChange registers the hook called, coalesced, after countdown ticks,
// reloads and finished route loads
func (v *View) OnChange(fn func()) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

func (v *View) notify() {
	select {
	case v.dirty <- struct{}{}:
	default:
	}
}

func (v *View) pump() {
	defer v.wg.Done()
	for {
		select {
		case <-v.ctx.Done():
			return
		case <-v.dirty:
			v.mu.Lock()
			fn := v.onChange
			v.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	}
}

// Reload fetches a fresh event snapshot and reconciles every engine. It is
// also the reloader the engines call after a refresh. When reloads overlap,
// a snapshot requested before the one already applied is discarded.
func (v *View) Reload(ctx context.Context) error {
	seq := v.reloads.Add(1)
	ev, err := v.deps.Events.GetEvent(ctx, v.eventID)
	if err != nil {
		return fmt.Errorf("failed to load event %s: %w", v.eventID, err)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if seq < v.applied {
		v.mu.Unlock()
		logging.Ctx(ctx).Debug().Str("event", v.eventID).Uint64("seq", seq).Msg("[Dashboard] stale reload dropped")
		return nil
	}
	v.applied = seq
	v.event = ev

	seen := make(map[int64]bool, len(ev.Groups))
	for i := range ev.Groups {
		g := &ev.Groups[i]
		seen[g.ID] = true
		ge, ok := v.engines[g.ID]
		if !ok {
			ge = v.startEngine()
			v.engines[g.ID] = ge
		}
		ge.engine.Reconcile(g.TrackedRunners)
	}
	for id, ge := range v.engines {
		if !seen[id] {
			ge.stop()
			delete(v.engines, id)
		}
	}

	v.syncActiveLocked()
	v.mu.Unlock()

	v.notify()
	return nil
}

func (v *View) startEngine() *groupEngine {
	e := tracking.NewEngine(v.deps.Runners, tracking.ReloaderFunc(v.Reload))
	e.OnTick(v.notify)
	ctx, stop := context.WithCancel(v.ctx)
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		e.Run(ctx)
	}()
	return &groupEngine{engine: e, stop: stop}
}

// syncActiveLocked keeps the active tab on a route group and its map
// handle on that group's route file
func (v *View) syncActiveLocked() {
	routes := v.event.RouteGroups()
	if len(routes) == 0 {
		v.active = 0
		v.releaseLocked()
		return
	}

	g, ok := v.event.Group(v.active)
	if !ok || !g.HasRoute() {
		g = routes[0]
	}
	v.active = g.ID

	if v.handle != nil && v.handle.URL() == g.RouteFile {
		return
	}
	v.releaseLocked()
	v.acquireLocked(g.RouteFile)
}

func (v *View) releaseLocked() {
	if v.handle != nil {
		v.handle.Release()
		v.handle = nil
	}
}

func (v *View) acquireLocked(fileURL string) {
	h := render.AcquireMap(v.ctx, v.deps.Routes, fileURL, v.deps.SettleDelay)
	v.handle = h
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		if _, err := h.Wait(v.ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, render.ErrMapReleased) {
			logging.Ctx(v.ctx).Warn().Err(err).Str("url", fileURL).Msg("[Dashboard] route load failed")
		}
		v.notify()
	}()
}

// SelectTab switches the active route group. Selecting the active group
// keeps its map.
func (v *View) SelectTab(groupID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	g, ok := v.event.Group(groupID)
	if !ok || !g.HasRoute() {
		return fmt.Errorf("%w: %d", ErrUnknownGroup, groupID)
	}
	if groupID == v.active && v.handle != nil {
		return nil
	}
	v.active = groupID
	v.releaseLocked()
	v.acquireLocked(g.RouteFile)
	return nil
}

// ActiveGroup is the selected route group, 0 when the event has none
func (v *View) ActiveGroup() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// SetVisible sets the runner filter used by the pushed snapshots
func (v *View) SetVisible(visible tracking.Visibility) {
	v.mu.Lock()
	v.visible = visible
	v.mu.Unlock()
	v.notify()
}

// Visible is the runner filter set by SetVisible
func (v *View) Visible() tracking.Visibility {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// WaitMap blocks until the active tab's route has loaded or ctx is done
func (v *View) WaitMap(ctx context.Context) error {
	v.mu.Lock()
	h := v.handle
	v.mu.Unlock()
	if h == nil {
		return nil
	}
	_, err := h.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Render composes the current snapshot with the given runner filter
func (v *View) Render(visible tracking.Visibility) Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	ev := v.event
	snap := Snapshot{
		Event:  header(ev, v.deps.Location),
		Tabs:   []Tab{},
		Tables: []tracking.Table{},
	}
	if len(ev.Groups) == 0 {
		snap.Placeholder = NoGroupsText
		return snap
	}

	for _, g := range ev.RouteGroups() {
		snap.Tabs = append(snap.Tabs, Tab{GroupID: g.ID, Name: g.Name})
	}

	if g, ok := ev.Group(v.active); ok && v.handle != nil {
		res, err := v.handle.Result()
		if errors.Is(err, render.ErrMapReleased) {
			res, err = nil, nil
		}
		view := render.ComposeGroup(g, res, err, visible, v.deps.Tiles)
		snap.ActiveGroup = g.ID
		snap.Group = &view
	}

	for i := range ev.Groups {
		g := &ev.Groups[i]
		var engine *tracking.Engine
		if ge, ok := v.engines[g.ID]; ok {
			engine = ge.engine
		}
		if table, ok := tracking.BuildTable(g, engine, v.deps.Location); ok {
			snap.Tables = append(snap.Tables, table)
		}
	}
	return snap
}

func header(ev *models.EventData, loc *time.Location) EventHeader {
	var parts []string
	for _, p := range []string{ev.Country, ev.Province, ev.City, ev.County, ev.Address} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	date := "-"
	if t, ok := tracking.ParseTimestamp(ev.Date, loc); ok {
		date = t.In(loc).Format(dateLayout)
	}
	return EventHeader{
		ID:       ev.ID,
		Name:     ev.Name,
		EnName:   ev.EnName,
		Date:     date,
		Location: strings.Join(parts, " "),
	}
}

// engineFor finds the engine tracking a runner
func (v *View) engineFor(runnerID int64) (*tracking.Engine, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrViewClosed
	}
	for _, ge := range v.engines {
		if _, ok := ge.engine.Runner(runnerID); ok {
			return ge.engine, nil
		}
	}
	return nil, tracking.ErrUnknownRunner
}

// Refresh runs a manual refresh of one runner
func (v *View) Refresh(ctx context.Context, runnerID int64) (tracking.Outcome, error) {
	e, err := v.engineFor(runnerID)
	if err != nil {
		return tracking.Outcome{}, err
	}
	return e.Refresh(ctx, runnerID)
}

// ToggleAutoRefresh switches a runner's automatic refresh
func (v *View) ToggleAutoRefresh(ctx context.Context, runnerID int64, enabled bool) error {
	e, err := v.engineFor(runnerID)
	if err != nil {
		return err
	}
	return e.ToggleAutoRefresh(ctx, runnerID, enabled)
}

// Close stops the engines and releases the map. It waits for the view's
// goroutines, so it must not be called from an OnChange hook.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.releaseLocked()
	for id, ge := range v.engines {
		ge.stop()
		delete(v.engines, id)
	}
	v.mu.Unlock()

	v.cancel()
	v.wg.Wait()
}
