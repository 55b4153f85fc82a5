package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/run365/dashboard-go/internal/route"
)

// DefaultSettleDelay is the pause between acquiring a map and starting its load
const DefaultSettleDelay = 100 * time.Millisecond

// ErrMapReleased is returned for a handle whose pipeline has been released
var ErrMapReleased = errors.New("map handle released")

// RouteLoader loads one route file
type RouteLoader interface {
	Load(ctx context.Context, fileURL string) (*route.Result, error)
}

// MapHandle owns the route pipeline of one mounted map. It is created by
// AcquireMap and must be released when the tab switches or the view closes.
// After Release the handle never exposes a result, even one that arrives
// later.
type MapHandle struct {
	url    string
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	result   *route.Result
	err      error
	released bool
}

// AcquireMap starts loading fileURL in the background after the settle delay
func AcquireMap(parent context.Context, loader RouteLoader, fileURL string, settle time.Duration) *MapHandle {
	ctx, cancel := context.WithCancel(parent)
	h := &MapHandle{
		url:    fileURL,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.run(ctx, loader, settle)
	return h
}

func (h *MapHandle) run(ctx context.Context, loader RouteLoader, settle time.Duration) {
	defer close(h.done)

	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		h.finish(nil, ctx.Err())
		return
	case <-timer.C:
	}

	res, err := loader.Load(ctx, h.url)
	h.finish(res, err)
}

func (h *MapHandle) finish(res *route.Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.result, h.err = res, err
}

// URL is the route file this handle loads
func (h *MapHandle) URL() string {
	return h.url
}

// Wait blocks until the load has finished or ctx is done
func (h *MapHandle) Wait(ctx context.Context) (*route.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
	}
	return h.Result()
}

// Result returns the loaded route without blocking. Before the load ends
// both values are nil.
func (h *MapHandle) Result() (*route.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrMapReleased
	}
	return h.result, h.err
}

// Ready reports whether the load has finished
func (h *MapHandle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Release cancels a pending load and drops the result. Safe to call more
// than once.
func (h *MapHandle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.result, h.err = nil, nil
	h.mu.Unlock()

	h.cancel()
}
