package route

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcherUsesProxy(t *testing.T) {
	var gotPath, gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotURL = r.URL.Query().Get("url")
		w.Write([]byte(threePointGPX))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), srv.URL+"/")
	data, err := f.Fetch(context.Background(), "https://oss.example.com/a b.gpx?sig=1&x=2")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != threePointGPX {
		t.Fatalf("unexpected body")
	}
	if gotPath != "/api/v2/route-file-proxy" {
		t.Fatalf("unexpected proxy path %q", gotPath)
	}
	if gotURL != "https://oss.example.com/a b.gpx?sig=1&x=2" {
		t.Fatalf("file url not escaped round-trip: %q", gotURL)
	}
}

func TestFetcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.Client(), srv.URL).Fetch(context.Background(), "https://x/a.gpx")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetcherDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.gpx" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(nil, "")
	if got := f.ProxyURL(srv.URL + "/a.gpx"); got != srv.URL+"/a.gpx" {
		t.Fatalf("without a proxy base the url is used as is, got %q", got)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/a.gpx"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestFetcherRejectsOversizedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 17)))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), "")
	f.maxSize = 16
	_, err := f.Fetch(context.Background(), srv.URL+"/big.gpx")
	if !errors.Is(err, ErrFetch) || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected a too large ErrFetch, got %v", err)
	}

	f.maxSize = 17
	if data, err := f.Fetch(context.Background(), srv.URL+"/big.gpx"); err != nil || len(data) != 17 {
		t.Fatalf("file at the limit: %d bytes, %v", len(data), err)
	}
}

type countingSource struct {
	calls atomic.Int32
	data  []byte
	err   error
	gate  chan struct{}
}

func (s *countingSource) Fetch(ctx context.Context, fileURL string) ([]byte, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.data, s.err
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) GetRouteFile(ctx context.Context, fileURL string, maxAge time.Duration) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[fileURL]
	return d, ok, nil
}

func (m *memStore) PutRouteFile(ctx context.Context, fileURL string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[fileURL] = data
	return nil
}

func TestLoaderCachesResults(t *testing.T) {
	src := &countingSource{data: []byte(threePointGPX)}
	store := &memStore{data: map[string][]byte{}}
	l, err := NewLoader(src, store, LoaderConfig{CacheSize: 4, RawTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx := context.Background()
	first, err := l.Load(ctx, "https://x/a.gpx")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, err := l.Load(ctx, "https://x/a.gpx")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if first != second {
		t.Fatalf("second load should come from memory")
	}
	if src.calls.Load() != 1 {
		t.Fatalf("expected 1 fetch, got %d", src.calls.Load())
	}
	if _, ok := store.data["https://x/a.gpx"]; !ok {
		t.Fatalf("raw text should be persisted")
	}

	// after a memory purge the store serves the raw text
	l.Purge()
	if _, err := l.Load(ctx, "https://x/a.gpx"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if src.calls.Load() != 1 {
		t.Fatalf("store hit should not fetch, got %d fetches", src.calls.Load())
	}
}

func TestLoaderSharesConcurrentFetch(t *testing.T) {
	src := &countingSource{data: []byte(threePointGPX), gate: make(chan struct{})}
	l, _ := NewLoader(src, nil, LoaderConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Load(context.Background(), "https://x/a.gpx"); err != nil {
				t.Errorf("Load() error = %v", err)
			}
		}()
	}

	// let the callers pile up behind the first fetch
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if src.calls.Load() != 1 {
		t.Fatalf("expected 1 shared fetch, got %d", src.calls.Load())
	}
}

func TestLoaderDoesNotCacheFailures(t *testing.T) {
	src := &countingSource{err: ErrFetch}
	store := &memStore{data: map[string][]byte{}}
	l, _ := NewLoader(src, store, LoaderConfig{})

	for i := 0; i < 2; i++ {
		if _, err := l.Load(context.Background(), "https://x/a.gpx"); !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
	}
	if src.calls.Load() != 2 {
		t.Fatalf("failures must not be cached, got %d fetches", src.calls.Load())
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be persisted on failure")
	}
}

func TestLoaderCancelledWait(t *testing.T) {
	src := &countingSource{data: []byte(threePointGPX), gate: make(chan struct{})}
	l, _ := NewLoader(src, nil, LoaderConfig{})
	defer close(src.gate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, "https://x/a.gpx"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
