package tracking

import (
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// LocationKey is the reserved result key holding the runner's last GPS fix
const LocationKey = "_location"

// ResultState tells how much of a result blob could be read
type ResultState int

const (
	// ResultEmpty means the runner has no result yet
	ResultEmpty ResultState = iota
	// ResultUnparseable means the blob is not a JSON object
	ResultUnparseable
	// ResultParsed means the blob decoded; individual cells may still be absent
	ResultParsed
)

func (s ResultState) String() string {
	switch s {
	case ResultEmpty:
		return "empty"
	case ResultUnparseable:
		return "unparseable"
	default:
		return "parsed"
	}
}

// GPSFix is a runner position pushed into the result blob, WGS84
type GPSFix struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// CheckpointCell is what the table shows for one runner at one checkpoint
type CheckpointCell struct {
	Display        string `json:"display"`
	CumulativeTime string `json:"cumulativeTime,omitempty"`
	Cumulative     string `json:"cumulative,omitempty"` // CumulativeTime in 天/小时/分/秒 form
}

var absentCell = CheckpointCell{Display: "-"}

// Result is a decoded result blob. Decoding never fails: a bad blob is a
// Result in the Unparseable state and every lookup on it is absent.
type Result struct {
	State ResultState
	Fix   *GPSFix // nil when no usable fix is present

	cells map[string]json.RawMessage
}

// DecodeResult decodes a runner's result blob, a JSON object mapping
// checkpoint names to either a display string or {time, cumulative_time}.
func DecodeResult(blob string) Result {
	if blob == "" {
		return Result{State: ResultEmpty}
	}

	var cells map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &cells); err != nil {
		return Result{State: ResultUnparseable}
	}

	r := Result{State: ResultParsed, cells: cells}
	if raw, ok := cells[LocationKey]; ok {
		r.Fix = decodeFix(raw)
	}
	return r
}

// Checkpoint returns the cell for a checkpoint name. Missing names, empty
// values and values of any other shape show as "-".
func (r Result) Checkpoint(name string) CheckpointCell {
	raw, ok := r.cells[name]
	if !ok || name == LocationKey {
		return absentCell
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return absentCell
		}
		return CheckpointCell{Display: text}
	}

	var split struct {
		Time           interface{} `json:"time"`
		CumulativeTime interface{} `json:"cumulative_time"`
	}
	if err := json.Unmarshal(raw, &split); err != nil {
		return absentCell
	}
	display := scalarText(split.Time)
	if display == "" {
		return absentCell
	}

	cell := CheckpointCell{Display: display}
	if cum := scalarText(split.CumulativeTime); cum != "" {
		cell.CumulativeTime = cum
		cell.Cumulative = FormatCumulativeTime(cum)
	}
	return cell
}

// scalarText renders a non-empty string or non-zero number; anything else is ""
func scalarText(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func decodeFix(raw json.RawMessage) *GPSFix {
	var loc struct {
		Longitude *flexFloat `json:"longitude"`
		Latitude  *flexFloat `json:"latitude"`
		UpdatedAt string     `json:"updatedAt"`
	}
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil
	}
	if loc.Longitude == nil || loc.Latitude == nil {
		return nil
	}

	lng, lat := float64(*loc.Longitude), float64(*loc.Latitude)
	if lng == 0 && lat == 0 {
		return nil
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return nil
	}
	return &GPSFix{Longitude: lng, Latitude: lat, UpdatedAt: loc.UpdatedAt}
}

// flexFloat accepts a JSON number or a numeric string
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return strconv.ErrRange
	}
	*f = flexFloat(n)
	return nil
}
