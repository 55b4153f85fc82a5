package profile

import (
	"math"

	"github.com/run365/dashboard-go/internal/spatial"
)

const (
	// OffRouteRadiusKm is how far a runner may be from the nearest profile
	// sample and still be placed on the chart.
	OffRouteRadiusKm = 2.0

	// CheckpointToleranceKm is the distance within which a checkpoint counts
	// as lying on the sampled curve.
	CheckpointToleranceKm = 0.1

	// domainPad is one chart gridline, in meters
	domainPad = 10
)

// ElevationPoint is one sample of a route's elevation profile. Distance is
// cumulative km rounded to 2 decimals; Lng/Lat are the raw WGS84 coordinate
// the sample was taken from.
type ElevationPoint struct {
	Distance  float64  `json:"distance"`
	Elevation int      `json:"elevation"`
	Lng       *float64 `json:"lng,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
}

// Profile is a distance-indexed elevation profile in traversal order.
//
// All lookups are linear scans, O(n) per call. Profiles are capped at a few
// hundred points by downsampling so this stays cheap for chart composition.
type Profile []ElevationPoint

// Placement is where a geographic position lands on the profile
type Placement struct {
	Distance  float64 `json:"distance"`
	Elevation int     `json:"elevation"`
	OffsetKm  float64 `json:"offsetKm"` // distance from the position to the matched sample
}

// Snap is the result of snapping a declared checkpoint distance onto the profile
type Snap struct {
	Distance        float64 `json:"distance"`
	Delta           float64 `json:"delta"`
	WithinTolerance bool    `json:"withinTolerance"`
}

// NearestByDistance returns the sample whose distance is closest to target.
// Ties keep the first sample encountered. ok is false for an empty profile.
func (p Profile) NearestByDistance(target float64) (ElevationPoint, bool) {
	if len(p) == 0 {
		return ElevationPoint{}, false
	}

	best := p[0]
	bestDelta := math.Abs(best.Distance - target)
	for _, pt := range p[1:] {
		if d := math.Abs(pt.Distance - target); d < bestDelta {
			best, bestDelta = pt, d
		}
	}
	return best, true
}

// NearestByPosition finds the sample geographically closest to (lng, lat),
// considering only samples that carry coordinates. ok is false when no sample
// has coordinates or the closest one is farther than OffRouteRadiusKm.
func (p Profile) NearestByPosition(lng, lat float64) (Placement, bool) {
	var (
		best  Placement
		found bool
	)
	for _, pt := range p {
		if pt.Lng == nil || pt.Lat == nil {
			continue
		}
		d := spatial.HaversineKm(lat, lng, *pt.Lat, *pt.Lng)
		if !found || d < best.OffsetKm {
			best = Placement{Distance: pt.Distance, Elevation: pt.Elevation, OffsetKm: d}
			found = true
		}
	}
	if !found || best.OffsetKm > OffRouteRadiusKm {
		return Placement{}, false
	}
	return best, true
}

// YDomain returns the chart's elevation axis range: the data extremes rounded
// outward to a multiple of 10 m and padded by one more 10 m step.
// An empty profile yields (0, 0).
func (p Profile) YDomain() (int, int) {
	if len(p) == 0 {
		return 0, 0
	}

	lo, hi := p[0].Elevation, p[0].Elevation
	for _, pt := range p[1:] {
		lo = min(lo, pt.Elevation)
		hi = max(hi, pt.Elevation)
	}

	yMin := int(math.Floor(float64(lo)/domainPad))*domainPad - domainPad
	yMax := int(math.Ceil(float64(hi)/domainPad))*domainPad + domainPad
	return yMin, yMax
}

// SnapCheckpoint moves a checkpoint's declared distance onto the nearest
// sample. The nearest sample is returned even when it is outside
// CheckpointToleranceKm; WithinTolerance tells the caller which case it is.
func (p Profile) SnapCheckpoint(distance float64) (Snap, bool) {
	pt, ok := p.NearestByDistance(distance)
	if !ok {
		return Snap{}, false
	}
	delta := math.Abs(pt.Distance - distance)
	return Snap{
		Distance:        pt.Distance,
		Delta:           delta,
		WithinTolerance: delta <= CheckpointToleranceKm,
	}, true
}

// ElevationAt is the elevation of the sample nearest to distance, 0 when empty
func (p Profile) ElevationAt(distance float64) int {
	pt, ok := p.NearestByDistance(distance)
	if !ok {
		return 0
	}
	return pt.Elevation
}

// TotalDistance is the cumulative distance of the last sample
func (p Profile) TotalDistance() float64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].Distance
}
