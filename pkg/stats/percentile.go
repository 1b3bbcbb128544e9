// Package stats implements the order-statistic helpers the analytics reports
// need.
package stats

import (
	"errors"
	"math"
	"slices"
)

var (
	ErrEmptyInput = errors.New("stats: empty input")
	ErrOutOfRange = errors.New("stats: percentile out of range")
)

// Percentile returns the p-th percentile (0 <= p <= 100) of values, linearly
// interpolating between the two closest order statistics. For n sorted values
// the rank is h = (n-1)*p/100 and the result is x[floor(h)] + frac(h)*(x[ceil(h)]-x[floor(h)]).
// values is not modified.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, ErrOutOfRange
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	h := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo == hi {
		return sorted[lo], nil
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo]), nil
}

// Round rounds v to the given number of decimal places, ties to even.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}
