package route

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/run365/dashboard-go/internal/profile"
	"github.com/run365/dashboard-go/internal/spatial"
)

// MaxProfilePoints is the sample ceiling above which a profile is downsampled
const MaxProfilePoints = 500

// ExtractElevation walks every LineString and MultiLineString coordinate in
// file order and builds the distance-indexed profile. Cumulative distance is
// the Haversine sum over consecutive raw coordinates within a feature and
// carries on across features. A MultiLineString is flattened, so the gap
// between its parts counts as distance. Coordinates without elevation get 0.
//
// fc must hold untransformed WGS84 coordinates. Coordinates with a NaN or
// infinite position are skipped and a non-finite elevation counts as 0.
func ExtractElevation(fc *geojson.FeatureCollection) profile.Profile {
	if fc == nil {
		return nil
	}

	var (
		points profile.Profile
		total  float64
	)
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		coords, zIndex := flatCoords(f.Geometry)
		var prev geom.Coord
		for _, c := range coords {
			if len(c) < 2 || !finite(c[0], c[1]) {
				continue
			}
			if prev != nil {
				total += spatial.HaversineKm(prev[1], prev[0], c[1], c[0])
			}
			prev = c

			elevation := 0.0
			if zIndex >= 0 && zIndex < len(c) && finite(c[zIndex]) {
				elevation = c[zIndex]
			}

			lng, lat := c[0], c[1]
			points = append(points, profile.ElevationPoint{
				Distance:  roundHalfUp(total*100) / 100,
				Elevation: int(roundHalfUp(elevation)),
				Lng:       &lng,
				Lat:       &lat,
			})
		}
	}
	return points
}

func flatCoords(g geom.T) ([]geom.Coord, int) {
	switch g := g.(type) {
	case *geom.LineString:
		return g.Coords(), g.Layout().ZIndex()
	case *geom.MultiLineString:
		var coords []geom.Coord
		for i := 0; i < g.NumLineStrings(); i++ {
			coords = append(coords, g.LineString(i).Coords()...)
		}
		return coords, g.Layout().ZIndex()
	default:
		return nil, -1
	}
}

// roundHalfUp rounds halves toward +Inf, so -2.5 becomes -2
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Downsample keeps every ceil(n/limit)-th sample when the profile has more
// than limit samples. The first sample is always kept and order is preserved.
func Downsample(points profile.Profile, limit int) profile.Profile {
	if limit <= 0 || len(points) <= limit {
		return points
	}

	step := (len(points) + limit - 1) / limit
	out := make(profile.Profile, 0, (len(points)+step-1)/step)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	return out
}
