package render

import (
	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/route"
	"github.com/run365/dashboard-go/internal/tracking"
)

const (
	NoRouteText     = "暂无路线轨迹"
	LoadErrorPrefix = "加载轨迹文件失败: "
)

// GroupView is the map and chart of one event group. Exactly one of
// Placeholder, Error or Map is set once the route has been handled.
type GroupView struct {
	GroupID     int64      `json:"groupId"`
	Name        string     `json:"name"`
	Loading     bool       `json:"loading,omitempty"`
	Placeholder string     `json:"placeholder,omitempty"`
	Error       string     `json:"error,omitempty"`
	Map         *MapView   `json:"map,omitempty"`
	Chart       *ChartView `json:"chart,omitempty"`
}

// ComposeGroup builds the view of a group from its loaded route. A nil res
// and nil err mean the load is still running. Runners outside visible or
// without a GPS fix are not drawn.
func ComposeGroup(group *models.EventGroup, res *route.Result, err error, visible tracking.Visibility, tiles TileLayer) GroupView {
	view := GroupView{GroupID: group.ID, Name: group.Name}

	switch {
	case !group.HasRoute():
		view.Placeholder = NoRouteText
		return view
	case err != nil:
		view.Error = LoadErrorPrefix + route.Reason(err)
		return view
	case res == nil:
		view.Loading = true
		return view
	}

	runners := VisibleLocations(group, visible)
	view.Map = BuildMap(tiles, res.Route, res.Bounds, group.RoutePoints, runners)
	view.Chart = BuildChart(res.Elevation, group.RoutePoints, group.Checkpoints, runners)
	return view
}
