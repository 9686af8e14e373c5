// Package checksum compares executor checksums. CPU executors compute
// bit-identical per-element values and differ only in the order partial
// sums are combined; the accelerator may also round differently on the
// device, so it gets a separate, looser bound.
package checksum

import "math"

// DefaultAcceleratorTolerance is the relative error allowed between an
// accelerator checksum and the CPU reference.
const DefaultAcceleratorTolerance = 1e-3

// epsilon is the float64 machine epsilon used by the accumulators.
var epsilon = math.Nextafter(1, 2) - 1

// CPUTolerance bounds the relative difference between two CPU checksums of
// the same dataset that were combined in different orders. It grows with
// the square root of the worker count and of the dataset length and
// linearly with the iteration count, and is never zero: reordering float64
// additions changes the low bits even at zero iterations.
func CPUTolerance(workers, length, iterations int) float64 {
	return math.Sqrt(float64(max(workers, 1))) *
		epsilon *
		float64(max(iterations, 0)+1) *
		math.Sqrt(float64(max(length, 1)))
}

// RelativeError returns |got − want| / |want|. When want is zero it
// returns |got| so that two zero checksums agree exactly.
func RelativeError(got, want float64) float64 {
	diff := math.Abs(got - want)
	if want == 0 {
		return diff
	}

	return diff / math.Abs(want)
}

// Agree reports whether got is within the relative tolerance of want.
func Agree(got, want, tolerance float64) bool {
	if math.IsNaN(got) || math.IsNaN(want) {
		return false
	}

	return RelativeError(got, want) <= tolerance
}
