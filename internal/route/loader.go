package route

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/sync/singleflight"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/metrics"
	"github.com/run365/dashboard-go/internal/profile"
	"github.com/run365/dashboard-go/internal/spatial"
)

// Result is one loaded route file ready for display
type Result struct {
	URL    string `json:"url"`
	Format Format `json:"format"`

	// Route is the display geometry, in GCJ-02
	Route *geojson.FeatureCollection `json:"route"`

	// Raw is the parsed geometry before transformation, in WGS84
	Raw *geojson.FeatureCollection `json:"-"`

	// Elevation is computed from Raw and downsampled to MaxProfilePoints
	Elevation profile.Profile `json:"elevation"`

	// Bounds of Route, for fitting the map viewport
	Bounds *spatial.Bounds `json:"bounds,omitempty"`
}

// Build turns raw file bytes into a Result. name is the file name or URL.
func Build(name string, data []byte) (*Result, error) {
	raw, format, err := Parse(name, data)
	if err != nil {
		return nil, err
	}

	display := spatial.TransformFeatureCollection(raw)
	return &Result{
		URL:       name,
		Format:    format,
		Route:     display,
		Raw:       raw,
		Elevation: Downsample(ExtractElevation(raw), MaxProfilePoints),
		Bounds:    featureBounds(display),
	}, nil
}

func featureBounds(fc *geojson.FeatureCollection) *spatial.Bounds {
	var pts []spatial.Point
	for _, f := range fc.Features {
		coords, _ := flatCoords(f.Geometry)
		for _, c := range coords {
			if len(c) < 2 || !finite(c[0], c[1]) {
				continue
			}
			pts = append(pts, spatial.Point{Lat: c[1], Lon: c[0]})
		}
	}
	return spatial.BoundsOf(pts)
}

// RawStore persists raw route file text between process restarts
type RawStore interface {
	GetRouteFile(ctx context.Context, fileURL string, maxAge time.Duration) ([]byte, bool, error)
	PutRouteFile(ctx context.Context, fileURL string, data []byte) error
}

// LoaderConfig tunes the two cache layers
type LoaderConfig struct {
	CacheSize int           // parsed results kept in memory
	RawTTL    time.Duration // max age of raw text served from the store
}

// Loader loads route files through an in-memory LRU of parsed results, then
// the raw-text store, then the network. Concurrent loads of one URL share a
// single fetch.
type Loader struct {
	source Source
	store  RawStore
	ttl    time.Duration
	cache  *lru.Cache[string, *Result]
	group  singleflight.Group
}

// NewLoader creates a loader. store may be nil.
func NewLoader(source Source, store RawStore, cfg LoaderConfig) (*Loader, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	cache, err := lru.New[string, *Result](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create route cache: %w", err)
	}
	return &Loader{
		source: source,
		store:  store,
		ttl:    cfg.RawTTL,
		cache:  cache,
	}, nil
}

// Load returns the result for fileURL. Results are shared between callers
// and must not be modified.
//
// Cancelling ctx abandons the wait but not a fetch other callers may be
// waiting on.
func (l *Loader) Load(ctx context.Context, fileURL string) (*Result, error) {
	if res, ok := l.cache.Get(fileURL); ok {
		metrics.RecordRouteCacheHit("memory")
		return res, nil
	}

	ch := l.group.DoChan(fileURL, func() (interface{}, error) {
		return l.load(context.WithoutCancel(ctx), fileURL)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

func (l *Loader) load(ctx context.Context, fileURL string) (*Result, error) {
	data, cached := l.fromStore(ctx, fileURL)
	if !cached {
		metrics.RouteCacheMisses.Inc()
		var err error
		data, err = l.source.Fetch(ctx, fileURL)
		if err != nil {
			metrics.RecordRouteFailure(FailureKind(err))
			logging.Warn().Err(err).Str("url", fileURL).Msg("[RouteLoader] fetch failed")
			return nil, err
		}
	}

	start := time.Now()
	res, err := Build(fileURL, data)
	if err != nil {
		metrics.RecordRouteFailure(FailureKind(err))
		logging.Warn().Err(err).Str("url", fileURL).Msg("[RouteLoader] parse failed")
		return nil, err
	}
	metrics.RecordRouteParse(string(res.Format), time.Since(start))

	if !cached && l.store != nil {
		if err := l.store.PutRouteFile(ctx, fileURL, data); err != nil {
			logging.Warn().Err(err).Str("url", fileURL).Msg("[RouteLoader] failed to persist route file")
		}
	}

	l.cache.Add(fileURL, res)
	logging.Debug().
		Str("url", fileURL).
		Str("format", string(res.Format)).
		Int("samples", len(res.Elevation)).
		Msg("[RouteLoader] route loaded")
	return res, nil
}

func (l *Loader) fromStore(ctx context.Context, fileURL string) ([]byte, bool) {
	if l.store == nil {
		return nil, false
	}
	data, ok, err := l.store.GetRouteFile(ctx, fileURL, l.ttl)
	if err != nil {
		logging.Warn().Err(err).Str("url", fileURL).Msg("[RouteLoader] route file store read failed")
		return nil, false
	}
	if ok {
		metrics.RecordRouteCacheHit("sqlite")
	}
	return data, ok
}

// Purge drops every parsed result held in memory
func (l *Loader) Purge() {
	l.cache.Purge()
}
