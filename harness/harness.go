package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/logibench/executor"
)

// RunConfig holds the parameters for measuring one executor.
type RunConfig struct {
	Iterations int
	// WarmupIterations is the iteration count of the discarded warmup pass.
	// Zero disables warmup.
	WarmupIterations int
	// WarmupLength is the number of leading elements used for warmup. It is
	// clipped to the dataset length; zero means the whole dataset.
	WarmupLength int
}

// Measure runs a warmup pass of e on a prefix of data, discards its result,
// then times a full pass. data is only read.
func Measure(
	ctx context.Context,
	label string,
	e executor.Executor,
	data []float32,
	cfg RunConfig,
) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.WarmupIterations > 0 {
		n := len(data)
		if cfg.WarmupLength > 0 {
			n = min(n, cfg.WarmupLength)
		}

		if _, err := e.Run(data[:n], cfg.WarmupIterations); err != nil {
			return nil, fmt.Errorf("warmup %s: %w", label, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	sum, err := e.Run(data, cfg.Iterations)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", label, err)
	}

	elapsed := time.Since(start)

	return newResult(label, sum, elapsed, len(data), cfg.Iterations), nil
}

func newResult(label string, sum float64, elapsed time.Duration, length, iterations int) *Result {
	r := &Result{
		Label:      label,
		Checksum:   sum,
		ElapsedMs:  float64(elapsed) / float64(time.Millisecond),
		Length:     length,
		Iterations: iterations,
	}

	if secs := elapsed.Seconds(); secs > 0 {
		r.ThroughputMops = float64(length) * float64(iterations) / secs / 1e6
	}

	return r
}

// Runner measures a single executor.
type Runner struct {
	Name     string
	Executor executor.Executor
	Logger   *slog.Logger
}

// NewRunner creates a Runner for e.
func NewRunner(e executor.Executor, logger *slog.Logger) *Runner {
	return &Runner{
		Name:     e.Name(),
		Executor: e,
		Logger:   logger.With(slog.String("executor", e.Name())),
	}
}

// Run measures the executor over data.
func (r *Runner) Run(ctx context.Context, data []float32, cfg RunConfig) (*Result, error) {
	r.Logger.InfoContext(ctx, "starting run",
		slog.Int("length", len(data)),
		slog.Int("iterations", cfg.Iterations),
		slog.Int("warmup_iterations", cfg.WarmupIterations),
	)

	result, err := Measure(ctx, r.Name, r.Executor, data, cfg)
	if err != nil {
		return nil, err
	}

	r.Logger.InfoContext(ctx, "run finished",
		slog.Float64("checksum", result.Checksum),
		slog.Float64("elapsed_ms", result.ElapsedMs),
		slog.Float64("throughput_mops", result.ThroughputMops),
	)

	return result, nil
}

// RunAll measures every executor of set in order. A failing executor is
// recorded as skipped and the remaining executors still run; only context
// cancellation stops the sequence.
func RunAll(
	ctx context.Context,
	logger *slog.Logger,
	set *Set,
	data []float32,
	cfg RunConfig,
) ([]Result, error) {
	results := make([]Result, 0, len(set.Executors)+len(set.Absent))

	for _, e := range set.Executors {
		runner := NewRunner(e, logger)

		result, err := runner.Run(ctx, data, cfg)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}

			runner.Logger.WarnContext(ctx, "executor failed, skipping",
				slog.String("error", err.Error()),
			)

			result = skipped(runner.Name, err.Error(), len(data), cfg.Iterations)
		}

		results = append(results, *result)
	}

	for _, a := range set.Absent {
		results = append(results, *skipped(a.Label, a.Reason, len(data), cfg.Iterations))
	}

	return results, nil
}
