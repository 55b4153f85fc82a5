package render

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/run365/dashboard-go/internal/route"
)

type gatedLoader struct {
	calls   atomic.Int32
	started chan struct{}
	gate    chan struct{}
	res     *route.Result
	err     error
}

func newGatedLoader(res *route.Result, err error) *gatedLoader {
	return &gatedLoader{
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
		res:     res,
		err:     err,
	}
}

func (l *gatedLoader) Load(ctx context.Context, fileURL string) (*route.Result, error) {
	l.calls.Add(1)
	l.started <- struct{}{}
	<-l.gate
	return l.res, l.err
}

func TestMapHandleLoads(t *testing.T) {
	want := &route.Result{URL: "https://x/a.gpx"}
	loader := newGatedLoader(want, nil)
	close(loader.gate)

	h := AcquireMap(context.Background(), loader, want.URL, time.Millisecond)
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got != want {
		t.Fatalf("Wait() = %p, want %p", got, want)
	}
	if !h.Ready() {
		t.Fatalf("handle should be ready after Wait")
	}
	if h.URL() != want.URL {
		t.Fatalf("URL() = %q", h.URL())
	}
}

func TestMapHandleLoadError(t *testing.T) {
	loader := newGatedLoader(nil, route.ErrNoRouteData)
	close(loader.gate)

	h := AcquireMap(context.Background(), loader, "https://x/a.gpx", 0)
	defer h.Release()

	_, err := h.Wait(context.Background())
	if !errors.Is(err, route.ErrNoRouteData) {
		t.Fatalf("Wait() error = %v, want ErrNoRouteData", err)
	}
}

func TestMapHandleReleaseBeforeSettle(t *testing.T) {
	loader := newGatedLoader(&route.Result{}, nil)
	close(loader.gate)

	h := AcquireMap(context.Background(), loader, "https://x/a.gpx", time.Hour)
	h.Release()

	if _, err := h.Wait(context.Background()); !errors.Is(err, ErrMapReleased) {
		t.Fatalf("Wait() error = %v, want ErrMapReleased", err)
	}
	if n := loader.calls.Load(); n != 0 {
		t.Fatalf("loader called %d times after release", n)
	}
}

func TestMapHandleDropsStaleResult(t *testing.T) {
	loader := newGatedLoader(&route.Result{URL: "late"}, nil)

	h := AcquireMap(context.Background(), loader, "https://x/a.gpx", 0)
	<-loader.started

	h.Release()
	close(loader.gate)

	res, err := h.Wait(context.Background())
	if res != nil || !errors.Is(err, ErrMapReleased) {
		t.Fatalf("Wait() = %v, %v; want nil, ErrMapReleased", res, err)
	}

	// second release is a no-op
	h.Release()
	if _, err := h.Result(); !errors.Is(err, ErrMapReleased) {
		t.Fatalf("Result() error = %v", err)
	}
}

func TestMapHandlePending(t *testing.T) {
	loader := newGatedLoader(&route.Result{}, nil)
	h := AcquireMap(context.Background(), loader, "https://x/a.gpx", 0)
	<-loader.started

	res, err := h.Result()
	if res != nil || err != nil {
		t.Fatalf("pending handle returned %v, %v", res, err)
	}
	if h.Ready() {
		t.Fatalf("pending handle reports ready")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}

	close(loader.gate)
	h.Release()
}
