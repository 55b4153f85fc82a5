package workout

import (
	"math"
	"testing"
	"time"

	"github.com/run365/dashboard-go/internal/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{61, "1:01"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{36061, "10:01:01"},
		{1799.6, "30:00"},
		{-5, "0:00"},
		{math.NaN(), "0:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPace(t *testing.T) {
	tests := map[float64]string{
		0:   "-",
		330: "5'30\"",
		305: "5'05\"",
		59:  "0'59\"",
		600: "10'00\"",
	}
	for in, want := range tests {
		if got := FormatPace(in); got != want {
			t.Errorf("FormatPace(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSourceLabelAndColor(t *testing.T) {
	tests := []struct {
		source, label, color string
	}{
		{"Manuel", "手动", "gray"},
		{"Manual", "手动", "gray"},
		{"Ocr", "OCR", "blue"},
		{"Strava", "Strava", "orange"},
		{"Garmin", "Garmin", "cyan"},
		{"Coros", "Coros", "teal"},
		{"Other", "其他", "gray"},
		{"Suunto", "Suunto", "gray"},
	}
	for _, tt := range tests {
		if got := SourceLabel(tt.source); got != tt.label {
			t.Errorf("SourceLabel(%q) = %q, want %q", tt.source, got, tt.label)
		}
		if got := SourceColor(tt.source); got != tt.color {
			t.Errorf("SourceColor(%q) = %q, want %q", tt.source, got, tt.color)
		}
	}

	opts := SourceOptions()
	if len(opts) != 6 || opts[0].Value != "" || opts[0].Label != "全部来源" || opts[1].Value != "Manuel" {
		t.Fatalf("SourceOptions() = %+v", opts)
	}
}

func TestMonthOptions(t *testing.T) {
	cst := time.FixedZone("CST", 8*3600)
	opts := MonthOptions(time.Date(2024, 3, 31, 23, 0, 0, 0, cst))
	if len(opts) != 12 {
		t.Fatalf("expected 12 months, got %d", len(opts))
	}
	if opts[0] != (Option{Value: "2024-03", Label: "2024年3月"}) {
		t.Errorf("first option = %+v", opts[0])
	}
	if opts[1].Value != "2024-02" || opts[3] != (Option{Value: "2023-12", Label: "2023年12月"}) {
		t.Errorf("months must step back across the year, got %+v", opts[:4])
	}
	if opts[11].Value != "2023-04" {
		t.Errorf("last option = %+v", opts[11])
	}
}

func TestParseMonth(t *testing.T) {
	if m, ok := ParseMonth("2024-05"); !ok || m != "2024-05" {
		t.Fatalf("ParseMonth(2024-05) = %q, %v", m, ok)
	}
	for _, bad := range []string{"", "2024-13", "2024/05", "May 2024", "2024-05-01"} {
		if _, ok := ParseMonth(bad); ok {
			t.Errorf("ParseMonth(%q) accepted", bad)
		}
	}
}

func TestBuildRow(t *testing.T) {
	kcal := 420.0
	row := BuildRow(models.Workout{
		ID:                 7,
		Day:                "2024-05-02",
		Distance:           10,
		Duration:           3725,
		Pace:               372,
		Source:             "Garmin",
		ActivityType:       "running",
		DeviceName:         "Forerunner 265",
		ActiveKilocalories: &kcal,
	})
	want := Row{
		ID:          7,
		Day:         "2024-05-02",
		Name:        "-",
		Type:        "running",
		Distance:    "10.00 km",
		Duration:    "1:02:05",
		Pace:        "6'12\"",
		Calories:    "420",
		HeartRate:   "-",
		Source:      "Garmin",
		SourceLabel: "Garmin",
		SourceColor: "cyan",
		Device:      "Forerunner 265",
	}
	if row != want {
		t.Fatalf("BuildRow() = %+v\nwant %+v", row, want)
	}
}
