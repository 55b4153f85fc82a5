package route

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/run365/dashboard-go/internal/profile"
	"github.com/run365/dashboard-go/internal/spatial"
)

const threePointGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="31.20" lon="121.40"><name>Parking</name></wpt>
  <trk>
    <name>Course</name>
    <trkseg>
      <trkpt lat="31.23" lon="121.47"><ele>5</ele></trkpt>
      <trkpt lat="31.24" lon="121.48"><ele>10</ele></trkpt>
      <trkpt lat="31.25" lon="121.49"><ele>5</ele></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestBuildThreePointGPX(t *testing.T) {
	res, err := Build("https://cdn.example.com/course.gpx", []byte(threePointGPX))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Format != FormatGPX {
		t.Fatalf("expected gpx, got %s", res.Format)
	}

	d1 := spatial.HaversineKm(31.23, 121.47, 31.24, 121.48)
	d2 := spatial.HaversineKm(31.24, 121.48, 31.25, 121.49)
	wantDist := []float64{0, math.Round(d1*100) / 100, math.Round((d1+d2)*100) / 100}
	wantElev := []int{5, 10, 5}

	if len(res.Elevation) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(res.Elevation))
	}
	for i, pt := range res.Elevation {
		if pt.Distance != wantDist[i] {
			t.Errorf("sample %d distance = %v, want %v", i, pt.Distance, wantDist[i])
		}
		if pt.Elevation != wantElev[i] {
			t.Errorf("sample %d elevation = %v, want %v", i, pt.Elevation, wantElev[i])
		}
	}
	if wantDist[1] != 1.46 || wantDist[2] != 2.93 {
		t.Fatalf("unexpected reference distances %v", wantDist)
	}

	// display geometry is shifted, profile coordinates are not
	line, ok := res.Route.Features[0].Geometry.(*geom.LineString)
	if !ok {
		t.Fatalf("expected a LineString, got %T", res.Route.Features[0].Geometry)
	}
	raw := [][2]float64{{121.47, 31.23}, {121.48, 31.24}, {121.49, 31.25}}
	for i, r := range raw {
		wantLng, wantLat := spatial.TransformCoord(r[0], r[1])
		c := line.Coord(i)
		if c[0] != wantLng || c[1] != wantLat {
			t.Errorf("display coord %d = %v, want (%v, %v)", i, c, wantLng, wantLat)
		}
		if *res.Elevation[i].Lng != r[0] || *res.Elevation[i].Lat != r[1] {
			t.Errorf("profile sample %d should keep raw coordinates", i)
		}
	}

	if res.Bounds == nil || res.Bounds.MinLng <= 121.47 || res.Bounds.MaxLat >= 31.25 {
		t.Fatalf("bounds should cover the shifted route: %+v", res.Bounds)
	}
}

func TestParseGPXMultiSegmentAndRoutes(t *testing.T) {
	doc := `<?xml version="1.0"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="31.23" lon="121.47"></trkpt>
    <trkpt lat="31.24" lon="121.48"></trkpt>
  </trkseg><trkseg>
    <trkpt lat="31.25" lon="121.49"></trkpt>
  </trkseg></trk>
  <rte><rtept lat="22.3" lon="114.2"><ele>12.6</ele></rtept><rtept lat="22.31" lon="114.21"><ele>-2.5</ele></rtept></rte>
</gpx>`

	fc, _, err := Parse("x.gpx", []byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("expected track and route features, got %d", len(fc.Features))
	}
	multi, ok := fc.Features[0].Geometry.(*geom.MultiLineString)
	if !ok || multi.NumLineStrings() != 2 {
		t.Fatalf("expected a 2-part MultiLineString, got %T", fc.Features[0].Geometry)
	}

	pts := ExtractElevation(fc)
	if len(pts) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(pts))
	}
	if pts[0].Elevation != 0 {
		t.Errorf("missing elevation should be 0, got %d", pts[0].Elevation)
	}
	if pts[3].Elevation != 13 || pts[4].Elevation != -2 {
		t.Errorf("elevations should round half up: %d, %d", pts[3].Elevation, pts[4].Elevation)
	}
	assertMonotonic(t, pts)
}

func TestParseNoRouteData(t *testing.T) {
	doc := `<?xml version="1.0"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="31.20" lon="121.40"><name>Only a waypoint</name></wpt>
</gpx>`
	if _, _, err := Parse("x.gpx", []byte(doc)); !errors.Is(err, ErrNoRouteData) {
		t.Fatalf("expected ErrNoRouteData, got %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not xml", "hello world"},
		{"broken kml", `<kml><Document><Placemark><LineString><coordinates>1,2</LineString>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse("route.kml", []byte(tt.data))
			if !errors.Is(err, ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
		})
	}
}

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2" xmlns:gx="http://www.google.com/kml/ext/2.2">
  <Document>
    <name>Doc</name>
    <Placemark>
      <name>Start</name>
      <Point><coordinates>121.47,31.23,0</coordinates></Point>
    </Placemark>
    <Placemark>
      <name>Course</name>
      <description>Main loop</description>
      <LineString>
        <coordinates>
          121.47,31.23,5 121.48,31.24,10
          121.49,31.25,5
        </coordinates>
      </LineString>
    </Placemark>
    <Placemark>
      <name>Split</name>
      <MultiGeometry>
        <LineString><coordinates>121.50,31.26 121.51,31.27</coordinates></LineString>
        <LineString><coordinates>121.52,31.28 121.53,31.29</coordinates></LineString>
        <Polygon><outerBoundaryIs><LinearRing><coordinates>1,1 2,2 3,3 1,1</coordinates></LinearRing></outerBoundaryIs></Polygon>
      </MultiGeometry>
    </Placemark>
    <Placemark>
      <name>Recorded</name>
      <gx:Track>
        <when>2024-01-01T00:00:00Z</when>
        <gx:coord>121.54 31.30 20</gx:coord>
        <when>2024-01-01T00:01:00Z</when>
        <gx:coord>121.55 31.31 25</gx:coord>
      </gx:Track>
    </Placemark>
  </Document>
</kml>`

func TestParseKML(t *testing.T) {
	// detected from the root element, the name says nothing
	fc, format, err := Parse("https://files.example.com/download?id=42", []byte(sampleKML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if format != FormatKML {
		t.Fatalf("expected kml, got %s", format)
	}
	if len(fc.Features) != 3 {
		t.Fatalf("expected 3 line features, got %d", len(fc.Features))
	}

	course := fc.Features[0]
	if course.Properties["name"] != "Course" || course.Properties["description"] != "Main loop" {
		t.Errorf("unexpected properties %v", course.Properties)
	}
	if ls, ok := course.Geometry.(*geom.LineString); !ok || ls.NumCoords() != 3 || ls.Coord(1)[2] != 10 {
		t.Errorf("unexpected course geometry %v", course.Geometry)
	}

	split, ok := fc.Features[1].Geometry.(*geom.MultiLineString)
	if !ok || split.NumLineStrings() != 2 {
		t.Errorf("expected MultiGeometry lines only, got %v", fc.Features[1].Geometry)
	}

	track, ok := fc.Features[2].Geometry.(*geom.LineString)
	if !ok || track.NumCoords() != 2 || track.Coord(0)[2] != 20 {
		t.Errorf("unexpected gx:Track geometry %v", fc.Features[2].Geometry)
	}

	pts := ExtractElevation(fc)
	if len(pts) != 9 {
		t.Fatalf("expected 9 samples, got %d", len(pts))
	}
	assertMonotonic(t, pts)
}

func TestDetectFormat(t *testing.T) {
	gpxDoc := []byte(`<gpx></gpx>`)
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"ROUTE.KML", gpxDoc, FormatKML},
		{"route.gpx", []byte(`<kml></kml>`), FormatKML},
		{"route.gpx", gpxDoc, FormatGPX},
		{"noext", gpxDoc, FormatGPX},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name, tt.data)
		if err != nil || got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
		}
	}
}

func TestExtractElevationLineString(t *testing.T) {
	for _, n := range []int{2, 10, 700} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			coords := make([]geom.Coord, n)
			for i := range coords {
				coords[i] = geom.Coord{121.4 + float64(i)*0.001, 31.2 + float64(i)*0.0005, float64(i % 37)}
			}
			doc := buildGPX(coords)
			fc, _, err := Parse("a.gpx", []byte(doc))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			pts := ExtractElevation(fc)
			if len(pts) != n {
				t.Fatalf("expected %d samples, got %d", n, len(pts))
			}
			if pts[0].Distance != 0 {
				t.Fatalf("first sample must be at distance 0")
			}
			assertMonotonic(t, pts)
		})
	}
}

func TestDownsample(t *testing.T) {
	tests := []struct {
		n       int
		wantLen int
	}{
		{0, 0},
		{500, 500},
		{501, 251},
		{1000, 500},
		{1201, 401},
		{10000, 500},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			in := make(profile.Profile, tt.n)
			for i := range in {
				in[i] = profile.ElevationPoint{Distance: float64(i), Elevation: i}
			}
			out := Downsample(in, MaxProfilePoints)
			if len(out) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(out), tt.wantLen)
			}
			if len(out) > MaxProfilePoints {
				t.Fatalf("output exceeds the ceiling")
			}
			if tt.n > 0 && out[0] != in[0] {
				t.Fatalf("first sample not kept")
			}
			assertMonotonic(t, out)
		})
	}
}

func TestReason(t *testing.T) {
	err := fmt.Errorf("%w: status 404", ErrFetch)
	if Reason(err) != "failed to fetch file" {
		t.Fatalf("unexpected reason %q", Reason(err))
	}
	if FailureKind(err) != "fetch" || FailureKind(ErrNoRouteData) != "no_route_data" {
		t.Fatalf("unexpected failure kinds")
	}
}

func assertMonotonic(t *testing.T, pts profile.Profile) {
	t.Helper()
	for i := 1; i < len(pts); i++ {
		if pts[i].Distance < pts[i-1].Distance {
			t.Fatalf("distance decreases at %d: %v -> %v", i, pts[i-1].Distance, pts[i].Distance)
		}
	}
}

func buildGPX(coords []geom.Coord) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1"><trk><trkseg>`)
	for _, c := range coords {
		fmt.Fprintf(&b, `<trkpt lat="%f" lon="%f"><ele>%f</ele></trkpt>`, c[1], c[0], c[2])
	}
	b.WriteString(`</trkseg></trk></gpx>`)
	return b.String()
}

func TestParseDeclaredLatin1(t *testing.T) {
	// "Caf\xe9" is "Café" in ISO-8859-1
	gpxDoc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		`<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">` +
		"<trk><name>Caf\xe9</name><trkseg>" +
		`<trkpt lat="31.23" lon="121.47"><ele>5</ele></trkpt>` +
		`<trkpt lat="31.24" lon="121.48"><ele>10</ele></trkpt>` +
		"</trkseg></trk></gpx>"
	kmlDoc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		`<kml xmlns="http://www.opengis.net/kml/2.2"><Document><Placemark>` +
		"<name>Caf\xe9</name>" +
		`<LineString><coordinates>121.47,31.23,5 121.48,31.24,10</coordinates></LineString>` +
		"</Placemark></Document></kml>"

	tests := []struct {
		name string
		data string
		want Format
	}{
		{"track.gpx", gpxDoc, FormatGPX},
		{"track.kml", kmlDoc, FormatKML},
		{"download", kmlDoc, FormatKML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, format, err := Parse(tt.name, []byte(tt.data))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if format != tt.want {
				t.Fatalf("format = %s, want %s", format, tt.want)
			}
			if len(fc.Features) != 1 || fc.Features[0].Properties["name"] != "Café" {
				t.Fatalf("unexpected features %+v", fc.Features)
			}
			if pts := ExtractElevation(fc); len(pts) != 2 || pts[1].Elevation != 10 {
				t.Fatalf("unexpected profile %+v", pts)
			}
		})
	}
}

func TestNonFiniteCoordinatesSkipped(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="31.23" lon="121.47"><ele>5</ele></trkpt>
    <trkpt lat="NaN" lon="121.475"><ele>7</ele></trkpt>
    <trkpt lat="31.235" lon="Inf"><ele>7</ele></trkpt>
    <trkpt lat="31.24" lon="121.48"><ele>NaN</ele></trkpt>
    <trkpt lat="31.25" lon="121.49"><ele>5</ele></trkpt>
  </trkseg></trk>
</gpx>`
	res, err := Build("a.gpx", []byte(doc))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(res.Elevation) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(res.Elevation))
	}
	for _, p := range res.Elevation {
		if math.IsNaN(p.Distance) || math.IsInf(p.Distance, 0) {
			t.Fatalf("non-finite distance in %+v", res.Elevation)
		}
	}
	want := spatial.HaversineKm(31.23, 121.47, 31.24, 121.48) + spatial.HaversineKm(31.24, 121.48, 31.25, 121.49)
	if math.Abs(res.Elevation[2].Distance-want) > 0.01 {
		t.Fatalf("total distance = %v, want about %v", res.Elevation[2].Distance, want)
	}
	if res.Bounds == nil || math.IsNaN(res.Bounds.MinLat) || math.IsInf(res.Bounds.MaxLng, 0) {
		t.Fatalf("unexpected bounds %+v", res.Bounds)
	}

	// collections built by hand go through the same filter
	line := geom.NewLineString(geom.XYZ).MustSetCoords([]geom.Coord{
		{121.47, 31.23, 5},
		{math.NaN(), 31.235, 6},
		{121.48, 31.24, math.Inf(1)},
	})
	pts := ExtractElevation(&geojson.FeatureCollection{Features: []*geojson.Feature{{Geometry: line}}})
	if len(pts) != 2 || pts[1].Elevation != 0 {
		t.Fatalf("unexpected profile %+v", pts)
	}
	if d := spatial.HaversineKm(31.23, 121.47, 31.24, 121.48); math.Abs(pts[1].Distance-d) > 0.01 {
		t.Fatalf("distance = %v, want about %v", pts[1].Distance, d)
	}
}
