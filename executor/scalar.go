package executor

import "github.com/weiihann/logibench/recurrence"

// Scalar runs the recurrence on the calling goroutine. Its ascending-index
// accumulation is the reference ordering for every other executor.
type Scalar struct {
	params recurrence.Params
}

// NewScalar creates a Scalar executor.
func NewScalar(p recurrence.Params) *Scalar {
	return &Scalar{params: p}
}

// Name returns "scalar".
func (s *Scalar) Name() string {
	return "scalar"
}

// Run returns the checksum of data after iterations steps.
func (s *Scalar) Run(data []float32, iterations int) (float64, error) {
	return sumRange(s.params, data, iterations), nil
}
