package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/weiihann/logibench/accel"
	"github.com/weiihann/logibench/checksum"
	"github.com/weiihann/logibench/config"
	"github.com/weiihann/logibench/dataset"
	"github.com/weiihann/logibench/harness"
	"github.com/weiihann/logibench/internal/hostinfo"
	"github.com/weiihann/logibench/report"
)

type runFlags struct {
	length        int
	iterations    int
	multiplier    float32
	warmup        int
	warmupLength  int
	workers       int
	laneWidth     int
	chunkDivisor  int
	executors     []string
	backends      []string
	noAccelerator bool
	blockSize     int
	maxMemoryMB   int
	tolerance     float64
	outputJSON    bool
	strict        bool
}

func newRunCmd(global *globalFlags) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark across executors",
		Long: `Generate the dataset, warm up and time each selected executor, and
report checksums, elapsed time, throughput and checksum agreement.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}

			f.apply(cmd, cfg)

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}

			return runBenchmark(cmd.Context(), logger, cmd.OutOrStdout(), cfg, f.outputJSON, f.strict)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&f.length, "length", 0,
		"Dataset length (default from config: 10000000)")
	flags.IntVar(&f.iterations, "iterations", 0,
		"Recurrence iterations per element (default from config: 200)")
	flags.Float32Var(&f.multiplier, "multiplier", 0,
		"Logistic map multiplier r (default from config: 3.96)")
	flags.IntVar(&f.warmup, "warmup", 0,
		"Warmup iterations, 0 disables warmup (default from config: 5)")
	flags.IntVar(&f.warmupLength, "warmup-length", 0,
		"Elements used for warmup (default from config: 65536)")
	flags.IntVar(&f.workers, "workers", 0,
		"Worker pool size, 0 = GOMAXPROCS")
	flags.IntVar(&f.laneWidth, "lane-width", 0,
		"Simulate this lane width instead of the hardware's")
	flags.IntVar(&f.chunkDivisor, "chunk-divisor", 0,
		"Vectorized chunks per worker (default from config: 4)")
	flags.StringSliceVar(&f.executors, "executors", nil,
		"Executors to run, in order (e.g. scalar,threaded,vectorized,accelerator)")
	flags.StringSliceVar(&f.backends, "backends", nil,
		"Accelerator backends to probe, in order (e.g. cuda,host)")
	flags.BoolVar(&f.noAccelerator, "no-accelerator", false,
		"Skip the accelerator executor")
	flags.IntVar(&f.blockSize, "block-size", 0,
		"Accelerator threads per block (default from config: 256)")
	flags.IntVar(&f.maxMemoryMB, "max-memory-mb", 0,
		"Host device memory limit in MiB, 0 = unlimited")
	flags.Float64Var(&f.tolerance, "tolerance", 0,
		"Accelerator relative checksum tolerance (default from config: 1e-3)")
	flags.BoolVar(&f.outputJSON, "json", false,
		"Output results as JSON instead of table")
	flags.BoolVar(&f.strict, "strict", false,
		"Exit with an error when checksums disagree")

	return cmd
}

// apply copies explicitly set flags over cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("length") {
		cfg.Dataset.Length = f.length
	}
	if changed("iterations") {
		cfg.Recurrence.Iterations = f.iterations
	}
	if changed("multiplier") {
		cfg.Recurrence.Multiplier = f.multiplier
	}
	if changed("warmup") {
		cfg.Warmup.Iterations = f.warmup
	}
	if changed("warmup-length") {
		cfg.Warmup.Length = f.warmupLength
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("lane-width") {
		cfg.Vector.LaneWidth = f.laneWidth
	}
	if changed("chunk-divisor") {
		cfg.Vector.ChunkDivisor = f.chunkDivisor
	}
	if changed("executors") {
		cfg.Executors = f.executors
	}
	if changed("backends") {
		cfg.Accelerator.Backends = f.backends
	}
	if f.noAccelerator {
		cfg.Accelerator.Enabled = false
	}
	if changed("block-size") {
		cfg.Accelerator.BlockSize = f.blockSize
	}
	if changed("max-memory-mb") {
		cfg.Accelerator.MaxMemoryMB = f.maxMemoryMB
	}
	if changed("tolerance") {
		cfg.Tolerance.AcceleratorRelative = f.tolerance
	}
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg *config.Config,
	outputJSON bool,
	strict bool,
) error {
	host := hostinfo.Detect()

	logger.InfoContext(ctx, "starting benchmark",
		slog.String("config", cfg.String()),
		slog.String("cpu", host.CPU),
		slog.String("simd_target", host.SIMDTarget),
		slog.Int("lane_width", host.LaneWidth),
	)

	// Step 1: Generate the dataset.
	data := dataset.Generate(cfg.Dataset.Length)
	summary := dataset.Summarize(data)

	logger.InfoContext(ctx, "dataset generated",
		slog.Int("length", summary.Length),
		slog.Float64("min", float64(summary.Min)),
		slog.Float64("max", float64(summary.Max)),
		slog.Float64("sum", summary.Sum),
	)

	// Step 2: Build executors.
	var backends []accel.Backend
	if cfg.Accelerator.Enabled {
		var err error

		backends, err = accel.NewBackends(cfg.Accelerator.Backends, cfg.Accelerator.BlockSize, cfg.MaxMemoryBytes())
		if err != nil {
			return fmt.Errorf("accelerator backends: %w", err)
		}
	}

	set, err := harness.Build(ctx, logger, harness.BuildConfig{
		Names:        cfg.ExecutorNames(),
		Params:       cfg.Params(),
		Workers:      cfg.Workers,
		LaneWidth:    cfg.Vector.LaneWidth,
		ChunkDivisor: cfg.Vector.ChunkDivisor,
		Backends:     backends,
	})
	if err != nil {
		return fmt.Errorf("build executors: %w", err)
	}
	defer set.Close()

	// Step 3: Measure each executor in order.
	runCfg := cfg.RunConfig()

	results, err := harness.RunAll(ctx, logger, set, data, runCfg)
	if err != nil {
		return fmt.Errorf("run benchmark: %w", err)
	}

	// Step 4: Report.
	tol := report.Tolerance{
		CPU:         checksum.CPUTolerance(set.Workers, len(data), runCfg.Iterations),
		Accelerator: cfg.Tolerance.AcceleratorRelative,
	}

	if outputJSON {
		if err := report.GenerateJSON(out, results); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		opts := report.Options{
			Host: host.Summary(),
			Dataset: fmt.Sprintf("%d values in [%g, %g], %d iterations, r = %g",
				summary.Length, summary.Min, summary.Max, runCfg.Iterations, cfg.Recurrence.Multiplier),
			Workers:   set.Workers,
			Lanes:     set.Lanes,
			Tolerance: tol,
		}
		if set.Accelerator != nil {
			opts.AcceleratorStatus = set.Accelerator.String()
		}

		if err := report.Generate(out, results, opts); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	cmp := report.Compare(results, tol)
	if !cmp.AllAgree {
		logger.WarnContext(ctx, "checksums disagree", slog.String("reference", cmp.Reference))

		if strict {
			return fmt.Errorf("checksums disagree with %s", cmp.Reference)
		}
	}

	logger.InfoContext(ctx, "benchmark complete")

	return nil
}
