package service

import (
	"context"
	"fmt"
	"time"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/profile"
	"github.com/run365/dashboard-go/internal/route"
	"github.com/run365/dashboard-go/internal/spatial"
)

var (
	ErrInvalidFileURL = route.ErrInvalidURL
	ErrHostNotAllowed = route.ErrHostNotAllowed
)

// RouteLoader loads parsed route files
type RouteLoader interface {
	Load(ctx context.Context, fileURL string) (*route.Result, error)
}

// RouteProfile is the elevation chart data of one route file
type RouteProfile struct {
	URL           string          `json:"url"`
	Format        route.Format    `json:"format"`
	Elevation     profile.Profile `json:"elevation"`
	YMin          int             `json:"yMin"`
	YMax          int             `json:"yMax"`
	TotalDistance float64         `json:"totalDistance"`
	Summary       profile.Summary `json:"summary"`
	Bounds        *spatial.Bounds `json:"bounds,omitempty"`
}

// RouteService serves route files and their elevation profiles
type RouteService struct {
	source route.Source
	store  route.RawStore
	loader RouteLoader
	hosts  *route.HostPolicy
	rawTTL time.Duration
}

// NewRouteService creates a new route service. source fetches files
// directly and store may be nil. A nil or empty hosts policy rejects every
// URL.
func NewRouteService(source route.Source, store route.RawStore, loader RouteLoader, hosts *route.HostPolicy, rawTTL time.Duration) *RouteService {
	return &RouteService{
		source: source,
		store:  store,
		loader: loader,
		hosts:  hosts,
		rawTTL: rawTTL,
	}
}

// CheckURL accepts absolute http(s) URLs whose host is allowlisted
func (s *RouteService) CheckURL(fileURL string) error {
	return s.hosts.Check(fileURL)
}

// ProxyFile returns the raw text of a route file, from the store when fresh
func (s *RouteService) ProxyFile(ctx context.Context, fileURL string) ([]byte, error) {
	if err := s.CheckURL(fileURL); err != nil {
		return nil, err
	}

	if s.store != nil {
		data, ok, err := s.store.GetRouteFile(ctx, fileURL, s.rawTTL)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("url", fileURL).Msg("[RouteProxy] store read failed")
		} else if ok {
			return data, nil
		}
	}

	data, err := s.source.Fetch(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.PutRouteFile(ctx, fileURL, data); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("url", fileURL).Msg("[RouteProxy] store write failed")
		}
	}
	return data, nil
}

// GetProfile loads a route file and returns its elevation profile
func (s *RouteService) GetProfile(ctx context.Context, fileURL string) (*RouteProfile, error) {
	if err := s.CheckURL(fileURL); err != nil {
		return nil, err
	}

	res, err := s.loader.Load(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load route file: %w", err)
	}

	yMin, yMax := res.Elevation.YDomain()
	return &RouteProfile{
		URL:           res.URL,
		Format:        res.Format,
		Elevation:     res.Elevation,
		YMin:          yMin,
		YMax:          yMax,
		TotalDistance: res.Elevation.TotalDistance(),
		Summary:       res.Elevation.Summarize(),
		Bounds:        res.Bounds,
	}, nil
}
