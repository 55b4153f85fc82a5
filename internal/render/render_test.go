package render

import (
	"errors"
	"fmt"
	"testing"

	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/profile"
	"github.com/run365/dashboard-go/internal/route"
	"github.com/run365/dashboard-go/internal/spatial"
	"github.com/run365/dashboard-go/internal/tracking"
)

const courseGPX = `<?xml version="1.0"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="31.23" lon="121.47"><ele>5</ele></trkpt>
    <trkpt lat="31.24" lon="121.48"><ele>10</ele></trkpt>
    <trkpt lat="31.25" lon="121.49"><ele>5</ele></trkpt>
  </trkseg></trk>
</gpx>`

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

func testGroup() *models.EventGroup {
	return &models.EventGroup{
		ID:        1,
		Name:      "10K",
		RouteFile: "https://x/course.gpx",
		RoutePoints: []models.RoutePoint{
			{Name: "起点", PointType: models.PointTypeStart, Longitude: 121.47, Latitude: 31.23, Distance: fp(0), Elevation: fp(7)},
			{Name: "补给", PointType: models.PointTypeAidStation, Longitude: 121.48, Latitude: 31.24, Distance: fp(1.5)},
			{Name: "无里程", PointType: models.PointTypeOther, Longitude: 121.49, Latitude: 31.25},
		},
		Checkpoints: []models.CheckPoint{
			{ID: 1, Name: "CP1", Distance: fp(1.5), Description: "关门 10:00"},
			{ID: 2, Name: "CP2", Distance: fp(9)},
			{ID: 3, Name: "无距离"},
		},
		TrackedRunners: []models.TrackedRunner{
			{ID: ip(11), Nickname: "on route", LatestResult: &models.TrackResult{
				Result: `{"_location":{"longitude":121.481,"latitude":31.241}}`,
			}},
			{ID: ip(12), Nickname: "far away", LatestResult: &models.TrackResult{
				Result: `{"_location":{"longitude":116.4,"latitude":39.9}}`,
			}},
			{ID: ip(13), Nickname: "no fix", LatestResult: &models.TrackResult{Result: `{}`}},
		},
	}
}

func TestBuildChart(t *testing.T) {
	res, err := route.Build("course.gpx", []byte(courseGPX))
	if err != nil {
		t.Fatalf("route.Build() error = %v", err)
	}
	g := testGroup()
	runners := tracking.Locations(g.TrackedRunners, nil)

	chart := BuildChart(res.Elevation, g.RoutePoints, g.Checkpoints, runners)

	if chart.Empty {
		t.Fatalf("chart should not be empty")
	}
	if chart.YMin != -10 || chart.YMax != 20 {
		t.Errorf("y domain = [%d, %d], want [-10, 20]", chart.YMin, chart.YMax)
	}

	if len(chart.RouteDots) != 3 {
		t.Fatalf("expected 3 route dots, got %d", len(chart.RouteDots))
	}
	if chart.RouteDots[0].Elevation != 7 {
		t.Errorf("declared elevation should win, got %v", chart.RouteDots[0].Elevation)
	}
	if chart.RouteDots[1].Elevation != 10 {
		t.Errorf("missing elevation comes from the profile, got %v", chart.RouteDots[1].Elevation)
	}
	if chart.RouteDots[2].Distance != 0 || chart.RouteDots[2].Elevation != 5 {
		t.Errorf("missing distance places the dot at 0, got %+v", chart.RouteDots[2])
	}

	if len(chart.CheckpointLines) != 2 {
		t.Fatalf("only checkpoints with a distance get a line, got %d", len(chart.CheckpointLines))
	}
	cp1 := chart.CheckpointLines[0]
	if cp1.Distance != 1.46 || !cp1.WithinTolerance {
		t.Errorf("unexpected CP1 snap %+v", cp1)
	}
	if fmt.Sprint(cp1.Labels) != "[CP1 关门 10:00 1.5km]" {
		t.Errorf("unexpected CP1 labels %v", cp1.Labels)
	}
	cp2 := chart.CheckpointLines[1]
	if cp2.Distance != 2.93 || cp2.WithinTolerance {
		t.Errorf("out of tolerance checkpoints snap to the nearest sample, got %+v", cp2)
	}
	if fmt.Sprint(cp2.Labels) != "[CP2 9km]" {
		t.Errorf("unexpected CP2 labels %v", cp2.Labels)
	}
	if chart.Height != ChartHeight+40 {
		t.Errorf("Height = %d, want %d", chart.Height, ChartHeight+40)
	}

	if len(chart.RunnerDots) != 1 || chart.RunnerDots[0].Name != "on route" {
		t.Fatalf("only the on-route runner is plotted, got %+v", chart.RunnerDots)
	}
	if chart.RunnerDots[0].Distance != 1.46 || chart.RunnerDots[0].Elevation != 10 {
		t.Errorf("unexpected runner placement %+v", chart.RunnerDots[0])
	}
}

func TestBuildChartEmptyProfile(t *testing.T) {
	chart := BuildChart(nil, testGroup().RoutePoints, testGroup().Checkpoints, nil)
	if !chart.Empty || chart.Placeholder != NoElevationText {
		t.Fatalf("expected the placeholder state, got %+v", chart)
	}
	if len(chart.RouteDots) != 0 || len(chart.CheckpointLines) != 0 {
		t.Fatalf("placeholder charts carry no overlays")
	}
}

func TestBuildChartWithoutCheckpoints(t *testing.T) {
	p := profile.Profile{{Distance: 0, Elevation: 100}, {Distance: 1, Elevation: 250}}
	chart := BuildChart(p, nil, nil, nil)
	if chart.Height != ChartHeight {
		t.Fatalf("Height = %d, want %d", chart.Height, ChartHeight)
	}
	if chart.YMin != 90 || chart.YMax != 260 {
		t.Fatalf("y domain = [%d, %d]", chart.YMin, chart.YMax)
	}
}

func TestComposeGroup(t *testing.T) {
	res, err := route.Build("course.gpx", []byte(courseGPX))
	if err != nil {
		t.Fatalf("route.Build() error = %v", err)
	}
	tiles := DefaultTileLayer()

	t.Run("no route file", func(t *testing.T) {
		g := testGroup()
		g.RouteFile = ""
		view := ComposeGroup(g, nil, nil, nil, tiles)
		if view.Placeholder != NoRouteText || view.Map != nil || view.Chart != nil {
			t.Fatalf("unexpected view %+v", view)
		}
	})

	t.Run("load failure", func(t *testing.T) {
		view := ComposeGroup(testGroup(), nil, fmt.Errorf("%w: status 502", route.ErrFetch), nil, tiles)
		if view.Error != "加载轨迹文件失败: failed to fetch file" {
			t.Fatalf("Error = %q", view.Error)
		}
		if view.Map != nil {
			t.Fatalf("no map on failure")
		}
	})

	t.Run("loading", func(t *testing.T) {
		view := ComposeGroup(testGroup(), nil, nil, nil, tiles)
		if !view.Loading {
			t.Fatalf("expected the loading state")
		}
	})

	t.Run("loaded", func(t *testing.T) {
		view := ComposeGroup(testGroup(), res, nil, tracking.Visibility{12: true}, tiles)
		if view.Map == nil || view.Chart == nil {
			t.Fatalf("expected map and chart")
		}
		if view.Map.Tiles.Subdomains != "1234" || view.Map.Tiles.MaxZoom != 18 {
			t.Errorf("unexpected tiles %+v", view.Map.Tiles)
		}

		wantLng, wantLat := spatial.TransformCoord(121.47, 31.23)
		m := view.Map.Markers[0]
		if m.Lng != wantLng || m.Lat != wantLat {
			t.Errorf("markers must be GCJ-02, got (%v, %v)", m.Lng, m.Lat)
		}

		// runner 12 passes the filter but is 1000 km away: on the map, not on the chart
		if len(view.Map.Runners) != 1 || view.Map.Runners[0].Name != "far away" {
			t.Errorf("unexpected map runners %+v", view.Map.Runners)
		}
		if len(view.Chart.RunnerDots) != 0 {
			t.Errorf("off-route runners are not plotted, got %+v", view.Chart.RunnerDots)
		}
	})
}

func TestComposeGroupEmptyElevation(t *testing.T) {
	res := &route.Result{}
	view := ComposeGroup(testGroup(), res, nil, nil, DefaultTileLayer())
	if view.Map == nil {
		t.Fatalf("the map is still shown")
	}
	if !view.Chart.Empty || view.Chart.Placeholder != NoElevationText {
		t.Fatalf("expected the chart placeholder, got %+v", view.Chart)
	}
}

func TestErrorsSurvive(t *testing.T) {
	view := ComposeGroup(testGroup(), nil, route.ErrNoRouteData, nil, DefaultTileLayer())
	if view.Error != LoadErrorPrefix+route.ErrNoRouteData.Error() {
		t.Fatalf("Error = %q", view.Error)
	}
	if !errors.Is(fmt.Errorf("wrap: %w", route.ErrParse), route.ErrParse) {
		t.Fatalf("sentinels must wrap")
	}
}
