package route

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/net/html/charset"
)

// parseKML streams the document and emits one feature per Placemark that
// carries line geometry: <LineString>, every LineString of a
// <MultiGeometry>, and <gx:Track>. Points and polygons are ignored.
func parseKML(data []byte) ([]*geojson.Feature, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		features    []*geojson.Feature
		inPlacemark bool
		inLine      bool
		track       []geom.Coord
		inTrack     bool
		lines       [][]geom.Coord
		hasZ        bool
		name, desc  string
		sawElement  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			sawElement = true
			switch el.Name.Local {
			case "Placemark":
				inPlacemark, lines, hasZ, name, desc = true, nil, false, "", ""
			case "name":
				if inPlacemark && name == "" && !inLine && !inTrack {
					if err := dec.DecodeElement(&name, &el); err != nil {
						return nil, fmt.Errorf("%w: %w", ErrParse, err)
					}
					name = strings.TrimSpace(name)
				}
			case "description":
				if inPlacemark && desc == "" && !inLine && !inTrack {
					if err := dec.DecodeElement(&desc, &el); err != nil {
						return nil, fmt.Errorf("%w: %w", ErrParse, err)
					}
					desc = strings.TrimSpace(desc)
				}
			case "LineString":
				inLine = inPlacemark
			case "Track":
				inTrack, track = inPlacemark, nil
			case "coordinates":
				if !inLine {
					continue
				}
				var text string
				if err := dec.DecodeElement(&text, &el); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrParse, err)
				}
				line, z := parseKMLCoordinates(text)
				if len(line) > 0 {
					lines = append(lines, line)
					hasZ = hasZ || z
				}
			case "coord":
				if !inTrack {
					continue
				}
				var text string
				if err := dec.DecodeElement(&text, &el); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrParse, err)
				}
				if c, ok := parseKMLTuple(strings.Fields(text)); ok {
					track = append(track, c)
					hasZ = hasZ || len(c) > 2
				}
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "LineString":
				inLine = false
			case "Track":
				if inTrack && len(track) > 0 {
					lines = append(lines, track)
				}
				inTrack, track = false, nil
			case "Placemark":
				if !inPlacemark {
					continue
				}
				inPlacemark = false
				props := map[string]interface{}{}
				if name != "" {
					props["name"] = name
				}
				if desc != "" {
					props["description"] = desc
				}
				if f := lineFeature(lines, hasZ, props); f != nil {
					features = append(features, f)
				}
			}
		}
	}

	if !sawElement {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}
	return features, nil
}

// parseKMLCoordinates reads a <coordinates> body: whitespace separated
// "lng,lat[,alt]" tuples. Malformed tuples are skipped.
func parseKMLCoordinates(text string) ([]geom.Coord, bool) {
	var (
		coords []geom.Coord
		hasZ   bool
	)
	for _, tuple := range strings.Fields(text) {
		c, ok := parseKMLTuple(strings.Split(tuple, ","))
		if !ok {
			continue
		}
		coords = append(coords, c)
		hasZ = hasZ || len(c) > 2
	}
	return coords, hasZ
}

func parseKMLTuple(parts []string) (geom.Coord, bool) {
	if len(parts) < 2 {
		return nil, false
	}
	c := make(geom.Coord, 0, 3)
	for _, p := range parts[:min(len(parts), 3)] {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !finite(v) {
			return nil, false
		}
		c = append(c, v)
	}
	return c, true
}
