// Package dataset generates the deterministic input array shared by every
// executor. Values follow sin(i × Angle) × 0.5 + 0.5 and are kept strictly
// inside (0, 1), where the logistic map neither converges nor escapes.
package dataset

import "math"

// Angle is the per-index phase step of the generator.
const Angle = 0.000123

var (
	// lowest and highest are the float32 bounds of the open interval (0, 1).
	lowest  = math.Nextafter32(0, 1)
	highest = math.Nextafter32(1, 0)
)

// Summary contains statistics about a generated dataset.
type Summary struct {
	Length int     `json:"length"`
	Min    float32 `json:"min"`
	Max    float32 `json:"max"`
	Sum    float64 `json:"sum"`
}

// Generate returns length values in ascending index order. Identical lengths
// always produce identical bits: there is no seed and no environment input.
func Generate(length int) []float32 {
	if length <= 0 {
		return []float32{}
	}

	data := make([]float32, length)
	for i := range data {
		data[i] = Value(i)
	}

	return data
}

// Value returns the generator output for index i.
func Value(i int) float32 {
	v := float32(math.Sin(float64(i)*Angle)*0.5 + 0.5)

	// Rounding to float32 can land exactly on 1 near the sine peaks.
	switch {
	case v <= 0:
		return lowest
	case v >= 1:
		return highest
	}

	return v
}

// Sum adds data into a float64 accumulator in ascending index order. It is
// the reference result of every executor at zero iterations.
func Sum(data []float32) float64 {
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}

	return sum
}

// Summarize computes a Summary for data.
func Summarize(data []float32) Summary {
	summary := Summary{Length: len(data)}
	if len(data) == 0 {
		return summary
	}

	summary.Min = data[0]
	summary.Max = data[0]

	for _, v := range data {
		summary.Min = min(summary.Min, v)
		summary.Max = max(summary.Max, v)
	}

	summary.Sum = Sum(data)

	return summary
}
