package route

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/net/html/charset"
)

// Format is the detected route file format
type Format string

const (
	FormatGPX Format = "gpx"
	FormatKML Format = "kml"
)

// DetectFormat classifies a file as KML when its name ends in .kml
// (case-insensitive) or its XML root element is <kml>, otherwise GPX.
// A file with no readable root element is ErrParse.
func DetectFormat(name string, data []byte) (Format, error) {
	if strings.HasSuffix(strings.ToLower(name), ".kml") {
		return FormatKML, nil
	}
	root, err := rootElement(data)
	if err != nil {
		return "", err
	}
	if root == "kml" {
		return FormatKML, nil
	}
	return FormatGPX, nil
}

// Parse converts a GPX or KML document into a collection of LineString and
// MultiLineString features in WGS84. Coordinates are [lng, lat] or
// [lng, lat, elevation]. name is the file name or URL, used for format detection.
func Parse(name string, data []byte) (*geojson.FeatureCollection, Format, error) {
	format, err := DetectFormat(fileName(name), data)
	if err != nil {
		return nil, "", err
	}

	var features []*geojson.Feature
	switch format {
	case FormatKML:
		features, err = parseKML(data)
	default:
		features, err = parseGPX(data)
	}
	if err != nil {
		return nil, format, err
	}
	if len(features) == 0 {
		return nil, format, ErrNoRouteData
	}
	return &geojson.FeatureCollection{Features: features}, format, nil
}

// fileName strips the query and fragment from a URL so the extension check
// sees the path only. Plain names pass through.
func fileName(name string) string {
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		return u.Path
	}
	return name
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: empty document", ErrParse)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrParse, err)
		}
		if el, ok := tok.(xml.StartElement); ok {
			return el.Name.Local, nil
		}
	}
}

// lineFeature builds a LineString feature from one run of coordinates, or a
// MultiLineString when there are several. Runs shorter than two points are
// kept; a single point still contributes a profile sample.
func lineFeature(lines [][]geom.Coord, hasZ bool, props map[string]interface{}) *geojson.Feature {
	if len(lines) == 0 {
		return nil
	}

	layout := geom.XY
	if hasZ {
		layout = geom.XYZ
	}
	for _, line := range lines {
		for i, c := range line {
			line[i] = fitCoord(c, layout)
		}
	}

	var g geom.T
	if len(lines) == 1 {
		g = geom.NewLineString(layout).MustSetCoords(lines[0])
	} else {
		g = geom.NewMultiLineString(layout).MustSetCoords(lines)
	}
	return &geojson.Feature{Geometry: g, Properties: props}
}

// fitCoord pads or truncates c to the layout's stride; a missing elevation is 0
func fitCoord(c geom.Coord, layout geom.Layout) geom.Coord {
	stride := layout.Stride()
	if len(c) == stride {
		return c
	}
	out := make(geom.Coord, stride)
	copy(out, c)
	return out
}

// finite reports whether every value is neither NaN nor infinite
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
