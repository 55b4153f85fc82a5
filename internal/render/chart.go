package render

import (
	"strconv"

	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/profile"
)

const (
	// ChartHeight is the plot height without checkpoint labels
	ChartHeight = 180

	// checkpointLabelSpace is added when any checkpoint line is drawn
	checkpointLabelSpace = 40

	NoElevationText = "暂无海拔数据"
)

// RouteDot marks a route point on the elevation chart
type RouteDot struct {
	Name      string  `json:"name"`
	Distance  float64 `json:"x"`
	Elevation float64 `json:"y"`
}

// CheckpointLine is a vertical marker at a checkpoint's snapped distance
type CheckpointLine struct {
	Name            string   `json:"name"`
	Distance        float64  `json:"x"`
	Labels          []string `json:"labels"` // name, description if any, "<distance>km"
	WithinTolerance bool     `json:"withinTolerance"`
}

// RunnerDot is a live runner placed on the profile
type RunnerDot struct {
	Name      string  `json:"name"`
	RunnerID  *int64  `json:"runnerId,omitempty"`
	Distance  float64 `json:"x"`
	Elevation int     `json:"y"`
	OffsetKm  float64 `json:"offsetKm"`
}

// ChartView is the elevation chart with its overlays
type ChartView struct {
	Empty           bool             `json:"empty"`
	Placeholder     string           `json:"placeholder,omitempty"`
	Points          profile.Profile  `json:"points,omitempty"`
	YMin            int              `json:"yMin"`
	YMax            int              `json:"yMax"`
	Height          int              `json:"height"`
	RouteDots       []RouteDot       `json:"routeDots,omitempty"`
	CheckpointLines []CheckpointLine `json:"checkpointLines,omitempty"`
	RunnerDots      []RunnerDot      `json:"runnerDots,omitempty"`
}

// BuildChart composes the elevation chart. An empty profile yields the
// placeholder state with no overlays.
//
// Route points sit at their declared distance (0 when missing) and their
// declared elevation, or the profile's elevation there. Only checkpoints
// with a distance get a line. Runners off the route are left out.
func BuildChart(p profile.Profile, points []models.RoutePoint, checkpoints []models.CheckPoint, runners []models.RunnerLocation) *ChartView {
	if len(p) == 0 {
		return &ChartView{Empty: true, Placeholder: NoElevationText, Height: ChartHeight}
	}

	yMin, yMax := p.YDomain()
	view := &ChartView{
		Points: p,
		YMin:   yMin,
		YMax:   yMax,
		Height: ChartHeight,
	}

	for _, rp := range points {
		dist := 0.0
		if rp.Distance != nil {
			dist = *rp.Distance
		}
		var elev float64
		if rp.Elevation != nil {
			elev = *rp.Elevation
		} else {
			elev = float64(p.ElevationAt(dist))
		}
		view.RouteDots = append(view.RouteDots, RouteDot{Name: rp.Name, Distance: dist, Elevation: elev})
	}

	for _, cp := range checkpoints {
		if cp.Distance == nil {
			continue
		}
		snap, ok := p.SnapCheckpoint(*cp.Distance)
		if !ok {
			continue
		}
		labels := []string{cp.Name}
		if cp.Description != "" {
			labels = append(labels, cp.Description)
		}
		labels = append(labels, strconv.FormatFloat(*cp.Distance, 'f', -1, 64)+"km")

		view.CheckpointLines = append(view.CheckpointLines, CheckpointLine{
			Name:            cp.Name,
			Distance:        snap.Distance,
			Labels:          labels,
			WithinTolerance: snap.WithinTolerance,
		})
	}
	if len(view.CheckpointLines) > 0 {
		view.Height += checkpointLabelSpace
	}

	for _, r := range runners {
		pl, ok := p.NearestByPosition(r.Longitude, r.Latitude)
		if !ok {
			continue
		}
		view.RunnerDots = append(view.RunnerDots, RunnerDot{
			Name:      r.Name,
			RunnerID:  r.RunnerID,
			Distance:  pl.Distance,
			Elevation: pl.Elevation,
			OffsetKm:  pl.OffsetKm,
		})
	}

	return view
}
