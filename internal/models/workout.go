package models

// Workout is one recorded activity from GET /api/v2/myWorkouts/
type Workout struct {
	ID                 int64    `json:"id"`
	Day                string   `json:"day"`
	Distance           float64  `json:"distance"` // km
	Duration           float64  `json:"duration"` // seconds
	Pace               float64  `json:"pace"`     // seconds per km, 0 when unknown
	Source             string   `json:"source"`   // Manuel, Ocr, Strava, Garmin, Coros, Other
	Note               string   `json:"note,omitempty"`
	ActivityType       string   `json:"activityType,omitempty"`
	ActivityName       string   `json:"activityName,omitempty"`
	DeviceName         string   `json:"deviceName,omitempty"`
	ActiveKilocalories *float64 `json:"activeKilocalories,omitempty"`
	AvgHeartRate       *float64 `json:"avgHeartRate,omitempty"`
}
