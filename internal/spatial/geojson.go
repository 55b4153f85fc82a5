package spatial

import (
	"maps"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// TransformFeatureCollection returns a GCJ-02 copy of fc. Every coordinate of
// every feature geometry is transformed whatever its nesting depth; IDs,
// properties and extra ordinates (elevation) are carried over. fc is not modified.
func TransformFeatureCollection(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil {
		return nil
	}

	out := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(fc.Features)),
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		out.Features = append(out.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   TransformGeometry(f.Geometry),
			Properties: maps.Clone(f.Properties),
		})
	}
	return out
}

// TransformGeometry returns a transformed clone of g. Unknown geometry types
// are returned as-is.
func TransformGeometry(g geom.T) geom.T {
	var clone geom.T
	switch g := g.(type) {
	case nil:
		return nil
	case *geom.Point:
		clone = g.Clone()
	case *geom.MultiPoint:
		clone = g.Clone()
	case *geom.LineString:
		clone = g.Clone()
	case *geom.MultiLineString:
		clone = g.Clone()
	case *geom.Polygon:
		clone = g.Clone()
	case *geom.MultiPolygon:
		clone = g.Clone()
	case *geom.GeometryCollection:
		gc := geom.NewGeometryCollection()
		for _, child := range g.Geoms() {
			if err := gc.Push(TransformGeometry(child)); err != nil {
				return g
			}
		}
		return gc
	default:
		return g
	}

	return geom.TransformInPlace(clone, func(c geom.Coord) {
		c[0], c[1] = TransformCoord(c[0], c[1])
	})
}
