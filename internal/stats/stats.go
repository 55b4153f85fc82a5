// Package stats holds the small descriptive statistics used for route
// summaries.
package stats

import (
	"math"
	"slices"
)

// Number is any value a statistic can be taken over
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Mean calculates the arithmetic mean, 0 for no values
func Mean[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Percentile calculates the p-th percentile (0-100).
// Uses linear interpolation between closest ranks.
func Percentile[T Number](values []T, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))

	sorted := make([]float64, len(values))
	for i, v := range values {
		sorted[i] = float64(v)
	}
	slices.Sort(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Climb sums the positive and negative steps of a series in order
func Climb[T Number](values []T) (ascent, descent float64) {
	for i := 1; i < len(values); i++ {
		diff := float64(values[i] - values[i-1])
		if diff > 0 {
			ascent += diff
		} else {
			descent -= diff
		}
	}
	return ascent, descent
}
