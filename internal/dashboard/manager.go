package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/metrics"
)

type entry struct {
	key   string
	view  *View
	err   error
	ready chan struct{}
	refs  int
	timer *time.Timer
}

// Manager shares views between the requests and streams of one session.
// A view stays open while referenced and for a linger period after the
// last release, so consecutive requests reuse its engines and loaded map.
type Manager struct {
	deps   Deps
	linger time.Duration
	hub    *Hub

	mu    sync.Mutex
	views map[string]*entry
}

func NewManager(deps Deps, hub *Hub, linger time.Duration) *Manager {
	return &Manager{
		deps:   deps,
		linger: linger,
		hub:    hub,
		views:  make(map[string]*entry),
	}
}

// ViewKey identifies the view of an event within a session
func ViewKey(sid, eventID string) string {
	return sid + "/" + eventID
}

// Acquire returns the session's view of an event, opening it when needed.
// The returned release func must be called once the caller is done.
func (m *Manager) Acquire(ctx context.Context, sid, eventID string) (*View, func(), error) {
	key := ViewKey(sid, eventID)

	m.mu.Lock()
	e, ok := m.views[key]
	if ok {
		e.refs++
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		m.mu.Unlock()

		<-e.ready
		if e.err != nil {
			m.release(e)
			return nil, nil, e.err
		}
		return e.view, m.releaser(e), nil
	}

	e = &entry{key: key, ready: make(chan struct{}), refs: 1}
	m.views[key] = e
	m.mu.Unlock()

	view, err := Open(ctx, eventID, m.deps)
	e.view, e.err = view, err
	close(e.ready)

	if err != nil {
		m.mu.Lock()
		if m.views[key] == e {
			delete(m.views, key)
		}
		m.mu.Unlock()
		return nil, nil, err
	}

	metrics.ActiveViews.Inc()
	view.OnChange(func() { m.publish(key, view) })
	logging.Ctx(ctx).Debug().Str("event_id", eventID).Msg("[Dashboard] view opened")
	return view, m.releaser(e), nil
}

func (m *Manager) releaser(e *entry) func() {
	var once sync.Once
	return func() { once.Do(func() { m.release(e) }) }
}

func (m *Manager) release(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs > 0 || e.view == nil {
		return
	}
	e.timer = time.AfterFunc(m.linger, func() { m.expire(e) })
}

func (m *Manager) expire(e *entry) {
	m.mu.Lock()
	if e.refs > 0 || m.views[e.key] != e {
		m.mu.Unlock()
		return
	}
	delete(m.views, e.key)
	m.mu.Unlock()

	e.view.Close()
	metrics.ActiveViews.Dec()
}

// Open is the number of views currently held
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}

// publish pushes the view's snapshot to the streams watching it
func (m *Manager) publish(key string, view *View) {
	if m.hub == nil || !m.hub.Watched(key) {
		return
	}
	payload, err := json.Marshal(Message{Type: MessageSnapshot, Data: view.Render(view.Visible())})
	if err != nil {
		logging.Error().Err(err).Msg("[Dashboard] failed to encode snapshot")
		return
	}
	m.hub.Broadcast(key, payload)
}

// Publish pushes the current snapshot right away
func (m *Manager) Publish(sid string, view *View) {
	m.publish(ViewKey(sid, view.EventID()), view)
}

// Close closes every view
func (m *Manager) Close() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.views))
	for key, e := range m.views {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.views, key)
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.view != nil {
			e.view.Close()
			metrics.ActiveViews.Dec()
		}
	}
}
