package tracking

import "github.com/run365/dashboard-go/internal/models"

// Visibility filters runners by ID. A nil Visibility shows everyone.
type Visibility map[int64]bool

// Allows reports whether the runner passes the filter. Runners without an
// ID only pass an empty filter.
func (v Visibility) Allows(r *models.TrackedRunner) bool {
	if v == nil {
		return true
	}
	return r.ID != nil && v[*r.ID]
}

// Locations derives the map/chart positions of the visible runners that
// carry a GPS fix in their latest result. The update time falls back to
// the runner's last refresh time.
func Locations(runners []models.TrackedRunner, visible Visibility) []models.RunnerLocation {
	var out []models.RunnerLocation
	for i := range runners {
		r := &runners[i]
		if !visible.Allows(r) || r.LatestResult == nil {
			continue
		}
		fix := DecodeResult(r.LatestResult.Result).Fix
		if fix == nil {
			continue
		}

		updatedAt := fix.UpdatedAt
		if updatedAt == "" {
			updatedAt = r.LastRefreshAt
		}
		out = append(out, models.RunnerLocation{
			Name:      r.DisplayName(),
			Longitude: fix.Longitude,
			Latitude:  fix.Latitude,
			UpdatedAt: updatedAt,
			RunnerID:  r.ID,
		})
	}
	return out
}
