package route

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// parseGPX emits one feature per track (a MultiLineString when the track has
// several segments) and one LineString per route. Waypoints are not route
// geometry and are dropped.
func parseGPX(data []byte) ([]*geojson.Feature, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var features []*geojson.Feature
	for _, track := range g.Tracks {
		var (
			lines [][]geom.Coord
			hasZ  bool
		)
		for _, seg := range track.Segments {
			line, z := gpxCoords(seg.Points)
			if len(line) == 0 {
				continue
			}
			lines = append(lines, line)
			hasZ = hasZ || z
		}
		if f := lineFeature(lines, hasZ, gpxProps(track.Name, track.Description, "track")); f != nil {
			features = append(features, f)
		}
	}

	for _, rte := range g.Routes {
		line, hasZ := gpxCoords(rte.Points)
		if len(line) == 0 {
			continue
		}
		if f := lineFeature([][]geom.Coord{line}, hasZ, gpxProps(rte.Name, rte.Description, "route")); f != nil {
			features = append(features, f)
		}
	}

	return features, nil
}

func gpxCoords(points []gpx.GPXPoint) ([]geom.Coord, bool) {
	coords := make([]geom.Coord, 0, len(points))
	hasZ := false
	for _, p := range points {
		if !finite(p.Longitude, p.Latitude) {
			continue
		}
		if p.Elevation.NotNull() && finite(p.Elevation.Value()) {
			coords = append(coords, geom.Coord{p.Longitude, p.Latitude, p.Elevation.Value()})
			hasZ = true
		} else {
			coords = append(coords, geom.Coord{p.Longitude, p.Latitude})
		}
	}
	return coords, hasZ
}

func gpxProps(name, desc, kind string) map[string]interface{} {
	props := map[string]interface{}{"type": kind}
	if name != "" {
		props["name"] = name
	}
	if desc != "" {
		props["desc"] = desc
	}
	return props
}
