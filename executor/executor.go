// Package executor runs the recurrence over a dataset with three CPU
// strategies: sequential scalar, threaded scalar and threaded vectorized.
//
// Every executor treats its input as read-only and returns the float64 sum
// of the final per-element values. Parallel executors give each unit of
// work a private accumulator and combine the partial sums once, under a
// mutex, outside the per-element loop.
package executor

import (
	"sync"

	"github.com/weiihann/logibench/recurrence"
)

// Executor computes the checksum of data after iterations recurrence steps.
type Executor interface {
	Name() string
	Run(data []float32, iterations int) (float64, error)
}

// accumulator is the only state shared between workers of one run.
type accumulator struct {
	mu    sync.Mutex
	total float64
}

func (a *accumulator) merge(partial float64) {
	a.mu.Lock()
	a.total += partial
	a.mu.Unlock()
}

func (a *accumulator) sum() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.total
}

// sumRange iterates every element of data and accumulates the results in
// ascending index order.
func sumRange(p recurrence.Params, data []float32, iterations int) float64 {
	var sum float64
	for _, x := range data {
		sum += float64(p.Iterate(x, iterations))
	}

	return sum
}
