package executor

import (
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/weiihann/logibench/recurrence"
)

// Threaded splits the dataset into one contiguous range per worker and runs
// the scalar kernel on each range.
//
// Every element costs the same amount of work, so static partitioning is
// already balanced. Partial sums are merged in completion order, which makes
// the last bits of the checksum differ from Scalar.
type Threaded struct {
	params recurrence.Params
	pool   *workerpool.Pool
}

// NewThreaded creates a Threaded executor on pool. The pool is owned by the
// caller.
func NewThreaded(p recurrence.Params, pool *workerpool.Pool) *Threaded {
	return &Threaded{params: p, pool: pool}
}

// Name returns "threaded".
func (t *Threaded) Name() string {
	return "threaded"
}

// Workers returns the size of the underlying pool.
func (t *Threaded) Workers() int {
	return t.pool.NumWorkers()
}

// Run returns the checksum of data after iterations steps.
func (t *Threaded) Run(data []float32, iterations int) (float64, error) {
	var acc accumulator

	t.pool.ParallelFor(len(data), func(start, end int) {
		acc.merge(sumRange(t.params, data[start:end], iterations))
	})

	return acc.sum(), nil
}
