package models

// RunnerStatus is the race state of a tracked runner
type RunnerStatus string

const (
	StatusNotStarted RunnerStatus = "not_started"
	StatusRacing     RunnerStatus = "racing"
	StatusFinished   RunnerStatus = "finished"
	StatusDNS        RunnerStatus = "dns"
	StatusDNF        RunnerStatus = "dnf"
)

// StatusBadge is the display text and colour of a RunnerStatus
type StatusBadge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

var statusBadges = map[RunnerStatus]StatusBadge{
	StatusNotStarted: {Text: "未开始", Color: "gray"},
	StatusRacing:     {Text: "比赛中", Color: "blue"},
	StatusFinished:   {Text: "已完赛", Color: "green"},
	StatusDNS:        {Text: "DNS", Color: "orange"},
	StatusDNF:        {Text: "DNF", Color: "red"},
}

// Badge returns the display badge. Unknown or empty statuses render as not_started.
func (s RunnerStatus) Badge() StatusBadge {
	if b, ok := statusBadges[s]; ok {
		return b
	}
	return statusBadges[StatusNotStarted]
}

// Valid reports whether s is one of the known statuses
func (s RunnerStatus) Valid() bool {
	_, ok := statusBadges[s]
	return ok
}

// RefreshDisabled is the nextRefreshIn value meaning manual refresh is off
const RefreshDisabled = -1

// TrackResult is the latest scraped result of a tracked runner. Result is a
// JSON document encoded as a string.
type TrackResult struct {
	ID            int64        `json:"id"`
	TrackedRunner int64        `json:"trackedRunner"`
	Result        string       `json:"result"`
	Status        RunnerStatus `json:"status"`
	CreatedAt     string       `json:"createdAt"`
}

// TrackedRunner is a runner followed on the event dashboard
type TrackedRunner struct {
	ID            *int64       `json:"id,omitempty"`
	EventGroup    int64        `json:"eventGroup"`
	Name          string       `json:"name,omitempty"`
	Nickname      string       `json:"nickname,omitempty"`
	BibNumber     string       `json:"bibNumber,omitempty"`
	TrackingURL   string       `json:"trackingUrl,omitempty"`
	LatestResult  *TrackResult `json:"latestResult,omitempty"`
	Status        RunnerStatus `json:"status"`
	LastRefreshAt string       `json:"lastRefreshAt,omitempty"`
	IsAutoRefresh bool         `json:"isAutoRefresh"`
	CanRefresh    bool         `json:"canRefresh"`
	NextRefreshIn int          `json:"nextRefreshIn"`
}

// DisplayName prefers the nickname, then the name, then "-"
func (r *TrackedRunner) DisplayName() string {
	switch {
	case r.Nickname != "":
		return r.Nickname
	case r.Name != "":
		return r.Name
	default:
		return "-"
	}
}

// RunnerLocation is a runner's last GPS fix, derived per render and never stored.
// Coordinates are WGS84.
type RunnerLocation struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
	RunnerID  *int64  `json:"runnerId,omitempty"`
}

// TrackedRunnerInput is the create/update payload forwarded to the backend
type TrackedRunnerInput struct {
	EventGroup    int64        `json:"eventGroup" binding:"required"`
	Name          string       `json:"name" binding:"max=64"`
	Nickname      string       `json:"nickname" binding:"max=64"`
	BibNumber     string       `json:"bibNumber" binding:"max=32"`
	TrackingURL   string       `json:"trackingUrl" binding:"omitempty,url"`
	Status        RunnerStatus `json:"status" binding:"omitempty,oneof=not_started racing finished dns dnf"`
	IsAutoRefresh bool         `json:"isAutoRefresh"`
}

// RefreshResponse is the backend's answer to a manual refresh
type RefreshResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
