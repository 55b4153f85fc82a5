package render

import (
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/spatial"
	"github.com/run365/dashboard-go/internal/tracking"
)

// TileLayer describes the raster tile source. Tiles are drawn in GCJ-02, so
// everything placed on the map must be transformed first.
type TileLayer struct {
	URL         string `json:"url" koanf:"url"`
	Subdomains  string `json:"subdomains" koanf:"subdomains"`
	Attribution string `json:"attribution" koanf:"attribution"`
	MaxZoom     int    `json:"maxZoom" koanf:"max_zoom"`
}

// DefaultTileLayer is the AutoNavi road map
func DefaultTileLayer() TileLayer {
	return TileLayer{
		URL:         "https://webrd0{s}.is.autonavi.com/appmaptile?lang=zh_cn&size=1&scale=1&style=8&x={x}&y={y}&z={z}",
		Subdomains:  "1234",
		Attribution: "&copy; 高德地图",
		MaxZoom:     18,
	}
}

// Marker is a named route point, GCJ-02
type Marker struct {
	Name      string           `json:"name"`
	PointType models.PointType `json:"pointType"`
	Lng       float64          `json:"lng"`
	Lat       float64          `json:"lat"`
}

// RunnerMarker is a live runner position, GCJ-02
type RunnerMarker struct {
	Name      string  `json:"name"`
	RunnerID  *int64  `json:"runnerId,omitempty"`
	Lng       float64 `json:"lng"`
	Lat       float64 `json:"lat"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// MapView is everything the client needs to draw the route map
type MapView struct {
	Tiles   TileLayer                  `json:"tiles"`
	Route   *geojson.FeatureCollection `json:"route"`
	Bounds  *spatial.Bounds            `json:"bounds,omitempty"`
	Markers []Marker                   `json:"markers"`
	Runners []RunnerMarker             `json:"runners"`
}

// BuildMap places route points and runners on the already transformed route
func BuildMap(tiles TileLayer, route *geojson.FeatureCollection, bounds *spatial.Bounds, points []models.RoutePoint, runners []models.RunnerLocation) *MapView {
	view := &MapView{
		Tiles:   tiles,
		Route:   route,
		Bounds:  bounds,
		Markers: make([]Marker, 0, len(points)),
		Runners: make([]RunnerMarker, 0, len(runners)),
	}
	for _, p := range points {
		lng, lat := spatial.TransformCoord(p.Longitude, p.Latitude)
		view.Markers = append(view.Markers, Marker{Name: p.Name, PointType: p.PointType, Lng: lng, Lat: lat})
	}
	for _, r := range runners {
		lng, lat := spatial.TransformCoord(r.Longitude, r.Latitude)
		view.Runners = append(view.Runners, RunnerMarker{
			Name:      r.Name,
			RunnerID:  r.RunnerID,
			Lng:       lng,
			Lat:       lat,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return view
}

// VisibleLocations is tracking.Locations over a group's runners
func VisibleLocations(group *models.EventGroup, visible tracking.Visibility) []models.RunnerLocation {
	return tracking.Locations(group.TrackedRunners, visible)
}
