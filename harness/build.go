package harness

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/weiihann/logibench/accel"
	"github.com/weiihann/logibench/executor"
	"github.com/weiihann/logibench/recurrence"
)

// BuildConfig describes the executors to construct.
type BuildConfig struct {
	Names  []string
	Params recurrence.Params
	// Workers sizes the pool shared by the threaded and vectorized
	// executors. Zero means GOMAXPROCS.
	Workers int
	// LaneWidth selects a simulated portable lane kernel of that width.
	// Zero uses the hardware lane kernel.
	LaneWidth    int
	ChunkDivisor int
	Backends     []accel.Backend
}

// Absent names an executor that could not be created and why.
type Absent struct {
	Label  string
	Reason string
}

// Set is the constructed executors in run order. Close releases the worker
// pool and the accelerator device.
type Set struct {
	Executors   []executor.Executor
	Absent      []Absent
	Accelerator *accel.Status
	Workers     int
	Lanes       string

	pool  *workerpool.Pool
	accel *accel.Executor
}

// Close releases resources held by the set.
func (s *Set) Close() {
	if s.accel != nil {
		s.accel.Close()
		s.accel = nil
	}

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

// KnownExecutors returns the supported executor names in default run order.
func KnownExecutors() []string {
	return []string{"scalar", "threaded", "vectorized", "accelerator"}
}

// Build constructs the executors named in cfg, dropping repeated names.
// Unknown names are an error;
// a missing accelerator is not, it is recorded in Absent and Accelerator.
func Build(ctx context.Context, logger *slog.Logger, cfg BuildConfig) (*Set, error) {
	names := make([]string, 0, len(cfg.Names))
	for _, name := range cfg.Names {
		if !slices.Contains(KnownExecutors(), name) {
			return nil, fmt.Errorf("unknown executor %q (known: %v)", name, KnownExecutors())
		}

		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	set := &Set{Workers: cfg.Workers}
	if set.Workers <= 0 {
		set.Workers = runtime.GOMAXPROCS(0)
	}

	needsPool := slices.Contains(names, "threaded") || slices.Contains(names, "vectorized")
	if needsPool {
		set.pool = workerpool.New(set.Workers)
	}

	for _, name := range names {
		switch name {
		case "scalar":
			set.Executors = append(set.Executors, executor.NewScalar(cfg.Params))

		case "threaded":
			set.Executors = append(set.Executors, executor.NewThreaded(cfg.Params, set.pool))

		case "vectorized":
			lanes := recurrence.NewHardwareLanes(cfg.Params)
			if cfg.LaneWidth > 0 {
				lanes = recurrence.NewPortableLanes(cfg.Params, cfg.LaneWidth)
			}

			v := executor.NewVectorized(cfg.Params, set.pool, lanes)
			if cfg.ChunkDivisor > 0 {
				v = v.WithChunkDivisor(cfg.ChunkDivisor)
			}

			set.Lanes = lanes.String()
			set.Executors = append(set.Executors, v)

		case "accelerator":
			exec, status := accel.TryCreate(cfg.Params, logger, cfg.Backends...)
			set.Accelerator = &status

			if exec == nil {
				set.Absent = append(set.Absent, Absent{Label: name, Reason: status.Reason})
				continue
			}

			set.accel = exec
			set.Executors = append(set.Executors, exec)
		}

		logger.InfoContext(ctx, "executor ready", slog.String("executor", name))
	}

	return set, nil
}
