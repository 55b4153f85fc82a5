package models

// PointType classifies a RoutePoint
type PointType string

const (
	PointTypeAidStation PointType = "aid_station"
	PointTypeCheckpoint PointType = "checkpoint"
	PointTypeParking    PointType = "parking"
	PointTypeStart      PointType = "start"
	PointTypeFinish     PointType = "finish"
	PointTypeOther      PointType = "other"
)

// RoutePoint is a named point of interest on a course. Coordinates are WGS84.
type RoutePoint struct {
	ID         *int64    `json:"id,omitempty"`
	EventGroup int64     `json:"eventGroup"`
	Name       string    `json:"name"`
	PointType  PointType `json:"pointType"`
	Longitude  float64   `json:"longitude"`
	Latitude   float64   `json:"latitude"`
	Elevation  *float64  `json:"elevation,omitempty"`
	Distance   *float64  `json:"distance,omitempty"` // km along the route
	SortOrder  *int      `json:"sortOrder,omitempty"`
}

// CheckPoint is a named timing gate. Distance is in km, the same unit as the
// elevation profile.
type CheckPoint struct {
	ID          int64    `json:"id"`
	EventGroup  int64    `json:"eventGroup"`
	Name        string   `json:"name"`
	Distance    *float64 `json:"distance,omitempty"`
	PointType   string   `json:"pointType"`
	Description string   `json:"description,omitempty"`
	CloseTime   string   `json:"closeTime,omitempty"`
	SortOrder   int      `json:"sortOrder"`
}

// EventGroup is one race distance of an event and the unit of map, chart and
// table rendering.
type EventGroup struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Distance       *float64        `json:"distance,omitempty"`
	DistanceUnit   string          `json:"distanceUnit,omitempty"`
	Description    string          `json:"description,omitempty"`
	RouteFile      string          `json:"routeFile,omitempty"`
	Price          *float64        `json:"price,omitempty"`
	Quota          *int            `json:"quota,omitempty"`
	RoutePoints    []RoutePoint    `json:"routePoints,omitempty"`
	TrackedRunners []TrackedRunner `json:"trackedRunners,omitempty"`
	Checkpoints    []CheckPoint    `json:"checkpoints,omitempty"`
}

// HasRoute reports whether the group carries a route file
func (g *EventGroup) HasRoute() bool {
	return g.RouteFile != ""
}

// EventData is the event snapshot returned by GET /api/v2/events/{id}/
type EventData struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	EnName   string       `json:"enName,omitempty"`
	Date     string       `json:"date"`
	Country  string       `json:"country,omitempty"`
	Province string       `json:"province,omitempty"`
	City     string       `json:"city,omitempty"`
	County   string       `json:"county,omitempty"`
	Address  string       `json:"address,omitempty"`
	Groups   []EventGroup `json:"groups,omitempty"`
}

// Group finds a group by ID
func (e *EventData) Group(id int64) (*EventGroup, bool) {
	for i := range e.Groups {
		if e.Groups[i].ID == id {
			return &e.Groups[i], true
		}
	}
	return nil, false
}

// RouteGroups returns the groups that have a route file, in snapshot order
func (e *EventData) RouteGroups() []*EventGroup {
	var out []*EventGroup
	for i := range e.Groups {
		if e.Groups[i].HasRoute() {
			out = append(out, &e.Groups[i])
		}
	}
	return out
}
