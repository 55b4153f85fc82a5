// Package workout formats the user's workout history for display: the
// table rows, the month and source filters, and the source badges.
package workout

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/run365/dashboard-go/internal/models"
)

const (
	EmptyText   = "暂无运动记录"
	MonthLayout = "2006-01"
	monthCount  = 12
)

// Option is one entry of a filter dropdown
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var sourceLabels = map[string]string{
	"Manuel": "手动",
	"Manual": "手动",
	"Ocr":    "OCR",
	"Strava": "Strava",
	"Garmin": "Garmin",
	"Coros":  "Coros",
	"Other":  "其他",
}

var sourceColors = map[string]string{
	"Manuel": "gray",
	"Manual": "gray",
	"Ocr":    "blue",
	"Strava": "orange",
	"Garmin": "cyan",
	"Coros":  "teal",
	"Other":  "gray",
}

var sourceOptions = []Option{
	{Value: "", Label: "全部来源"},
	{Value: "Manuel", Label: "手动"},
	{Value: "Ocr", Label: "OCR"},
	{Value: "Strava", Label: "Strava"},
	{Value: "Garmin", Label: "Garmin"},
	{Value: "Coros", Label: "Coros"},
}

// SourceOptions is the source filter, "all sources" first
func SourceOptions() []Option {
	return append([]Option(nil), sourceOptions...)
}

// SourceLabel is the badge text; unknown sources show as is
func SourceLabel(source string) string {
	if l, ok := sourceLabels[source]; ok {
		return l
	}
	return source
}

// SourceColor is the badge colour; unknown sources are gray
func SourceColor(source string) string {
	if c, ok := sourceColors[source]; ok {
		return c
	}
	return "gray"
}

// MonthOptions lists the current month of now and the eleven before it,
// newest first, as "2024-05" / "2024年5月"
func MonthOptions(now time.Time) []Option {
	opts := make([]Option, 0, monthCount)
	for i := 0; i < monthCount; i++ {
		d := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location())
		opts = append(opts, Option{
			Value: d.Format(MonthLayout),
			Label: fmt.Sprintf("%d年%d月", d.Year(), int(d.Month())),
		})
	}
	return opts
}

// ParseMonth normalizes a "2006-01" month; ok is false for anything else
func ParseMonth(s string) (string, bool) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(MonthLayout), true
}

// FormatDuration renders seconds as h:mm:ss, or m:ss under an hour
func FormatDuration(seconds float64) string {
	s := wholeSeconds(seconds)
	h, m, sec := s/3600, s%3600/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// FormatPace renders seconds per km as m'ss". An unknown pace is "-".
func FormatPace(secondsPerKm float64) string {
	s := wholeSeconds(secondsPerKm)
	if s == 0 {
		return "-"
	}
	return fmt.Sprintf("%d'%02d\"", s/60, s%60)
}

// FormatDistance renders km with two decimals
func FormatDistance(km float64) string {
	return strconv.FormatFloat(km, 'f', 2, 64) + " km"
}

func wholeSeconds(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return int(math.Round(v))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Row is one workout as the history table shows it
type Row struct {
	ID          int64  `json:"id"`
	Day         string `json:"day"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Distance    string `json:"distance"`
	Duration    string `json:"duration"`
	Pace        string `json:"pace"`
	Calories    string `json:"calories"`
	HeartRate   string `json:"heartRate"`
	Source      string `json:"source"`
	SourceLabel string `json:"sourceLabel"`
	SourceColor string `json:"sourceColor"`
	Device      string `json:"device,omitempty"`
}

// BuildRow formats one workout
func BuildRow(w models.Workout) Row {
	return Row{
		ID:          w.ID,
		Day:         w.Day,
		Name:        orDash(w.ActivityName),
		Type:        orDash(w.ActivityType),
		Distance:    FormatDistance(w.Distance),
		Duration:    FormatDuration(w.Duration),
		Pace:        FormatPace(w.Pace),
		Calories:    optional(w.ActiveKilocalories),
		HeartRate:   optional(w.AvgHeartRate),
		Source:      w.Source,
		SourceLabel: SourceLabel(w.Source),
		SourceColor: SourceColor(w.Source),
		Device:      w.DeviceName,
	}
}
