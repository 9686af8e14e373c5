package executor

import (
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/weiihann/logibench/recurrence"
)

// DefaultChunkDivisor sets chunk granularity: each chunk holds about
// fullGroups / (DefaultChunkDivisor × workers) lane groups.
const DefaultChunkDivisor = 4

// Layout describes how Vectorized covers a dataset: FullGroups × Width
// elements go through the lane kernel in chunks of ChunkGroups groups, and
// the last Tail elements go through the scalar kernel.
type Layout struct {
	Width       int
	FullGroups  int
	ChunkGroups int
	Chunks      int
	Tail        int
}

// Covered returns the number of elements the layout processes.
func (l Layout) Covered() int {
	return l.FullGroups*l.Width + l.Tail
}

// Plan computes the Layout for length elements, a lane width, a worker
// count and a chunk divisor.
//
// Dispatching one lane group at a time was measured to be slower than the
// threaded scalar executor: each unit of work is tiny compared to the
// scheduling cost and neighbouring groups land on different cores. Chunks
// of many consecutive groups keep memory access sequential within a worker
// and amortize dispatch, while a few chunks per worker still let the pool
// even out the tail.
func Plan(length, width, workers, divisor int) Layout {
	width = max(width, 1)
	workers = max(workers, 1)
	divisor = max(divisor, 1)

	full := max(length, 0) / width
	chunk := max(full/(divisor*workers), 1)

	chunks := 0
	if full > 0 {
		chunks = (full + chunk - 1) / chunk
	}

	return Layout{
		Width:       width,
		FullGroups:  full,
		ChunkGroups: chunk,
		Chunks:      chunks,
		Tail:        max(length, 0) - full*width,
	}
}

// Vectorized runs the lane kernel over whole lane groups on the worker pool
// and finishes the remainder with the scalar kernel on the calling
// goroutine.
type Vectorized struct {
	params  recurrence.Params
	pool    *workerpool.Pool
	lanes   recurrence.LaneKernel
	divisor int
}

// NewVectorized creates a Vectorized executor. The lane kernel's width is
// used as-is, so hardware and simulated widths share one code path.
func NewVectorized(
	p recurrence.Params,
	pool *workerpool.Pool,
	lanes recurrence.LaneKernel,
) *Vectorized {
	return &Vectorized{
		params:  p,
		pool:    pool,
		lanes:   lanes,
		divisor: DefaultChunkDivisor,
	}
}

// WithChunkDivisor returns a copy of v using divisor for chunk sizing.
func (v *Vectorized) WithChunkDivisor(divisor int) *Vectorized {
	c := *v
	c.divisor = max(divisor, 1)

	return &c
}

// Name returns "vectorized".
func (v *Vectorized) Name() string {
	return "vectorized"
}

// Lanes returns the lane kernel in use.
func (v *Vectorized) Lanes() recurrence.LaneKernel {
	return v.lanes
}

// Layout returns the plan Run uses for length elements.
func (v *Vectorized) Layout(length int) Layout {
	return Plan(length, v.lanes.Width(), v.pool.NumWorkers(), v.divisor)
}

// Run returns the checksum of data after iterations steps.
func (v *Vectorized) Run(data []float32, iterations int) (float64, error) {
	layout := v.Layout(len(data))
	width := layout.Width

	var acc accumulator

	if layout.FullGroups > 0 {
		v.pool.ParallelForAtomicBatched(layout.FullGroups, layout.ChunkGroups,
			func(first, last int) {
				lanes := make([]float32, width)

				var local float64
				for g := first; g < last; g++ {
					off := g * width
					v.lanes.Apply(lanes, data[off:off+width], iterations)

					// Lanes are added one by one in index order, so a
					// chunk's partial sum matches Scalar over the same range.
					for _, x := range lanes {
						local += float64(x)
					}
				}

				acc.merge(local)
			})
	}

	if layout.Tail > 0 {
		acc.merge(sumRange(v.params, data[layout.FullGroups*width:], iterations))
	}

	return acc.sum(), nil
}
