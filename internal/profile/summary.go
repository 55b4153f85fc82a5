package profile

import (
	"math"

	"github.com/run365/dashboard-go/internal/stats"
)

// Summary describes the climb of a route. Elevations are in m, distance in km.
type Summary struct {
	Distance     float64 `json:"distance"`
	MinElevation int     `json:"minElevation"`
	MaxElevation int     `json:"maxElevation"`
	AvgElevation float64 `json:"avgElevation"`
	P90Elevation float64 `json:"p90Elevation"`
	TotalAscent  float64 `json:"totalAscent"`
	TotalDescent float64 `json:"totalDescent"`

	// VerticalIntensity is ascent plus descent per km
	VerticalIntensity float64 `json:"verticalIntensity"`
}

// Summarize computes the climb summary. An empty profile yields the zero
// Summary. Values come from the profile samples, so a downsampled profile
// under-reports ascent on short steep sections.
func (p Profile) Summarize() Summary {
	if len(p) == 0 {
		return Summary{}
	}

	elevations := make([]int, len(p))
	for i, pt := range p {
		elevations[i] = pt.Elevation
	}

	s := Summary{
		Distance:     p.TotalDistance(),
		MinElevation: elevations[0],
		MaxElevation: elevations[0],
		AvgElevation: round1(stats.Mean(elevations)),
		P90Elevation: round1(stats.Percentile(elevations, 90)),
	}
	for _, e := range elevations[1:] {
		s.MinElevation = min(s.MinElevation, e)
		s.MaxElevation = max(s.MaxElevation, e)
	}
	s.TotalAscent, s.TotalDescent = stats.Climb(elevations)
	if s.Distance > 0 {
		s.VerticalIntensity = round1((s.TotalAscent + s.TotalDescent) / s.Distance)
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
