package tracking

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatCumulativeTime turns "H:M:S" or "H:M" into "<d>天<h>小时<m>分<s>秒".
// Leading zero units are dropped, but once a unit is shown every smaller
// unit is shown too; seconds are always shown. Input that is not two or three
// numeric fields gives "".
func FormatCumulativeTime(s string) string {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return ""
	}

	nums := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return ""
		}
		nums[i] = v
	}

	var hours, minutes, seconds float64
	switch len(nums) {
	case 3:
		hours, minutes, seconds = nums[0], nums[1], nums[2]
	case 2:
		hours, minutes = nums[0], nums[1]
	}

	days := math.Floor(hours / 24)
	remaining := math.Mod(hours, 24)

	var b strings.Builder
	if days > 0 {
		b.WriteString(num(days) + "天")
	}
	if remaining > 0 || days > 0 {
		b.WriteString(num(remaining) + "小时")
	}
	if minutes > 0 || b.Len() > 0 {
		b.WriteString(num(minutes) + "分")
	}
	b.WriteString(num(seconds) + "秒")
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// 更新时间显示格式
const updatedAtLayout = "01-02 15:04:05"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp reads the backend's ISO-8601 timestamps. Values without a
// zone are taken to be in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatUpdatedAt renders a timestamp as MM-DD HH:mm:ss in loc, or "-"
func FormatUpdatedAt(s string, loc *time.Location) string {
	t, ok := ParseTimestamp(s, loc)
	if !ok {
		return "-"
	}
	return t.In(loc).Format(updatedAtLayout)
}
