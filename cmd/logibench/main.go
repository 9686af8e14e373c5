// Package main provides the CLI entry point for logibench, a benchmark of
// scalar, threaded, vectorized and accelerator execution of the logistic map.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/weiihann/logibench/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var global globalFlags

	root := &cobra.Command{
		Use:   "logibench",
		Short: "Scalar, threaded, SIMD and GPU logistic-map benchmark",
		Long: `Logibench applies the logistic map x' = r·(x·(1−x)) to a deterministic
dataset with four execution strategies, times each one, and cross-checks
their checksums to prove they compute the same thing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	pflags := root.PersistentFlags()
	pflags.StringVar(&global.configPath, "config", "logibench.yaml",
		"Path to YAML config file (missing file uses defaults)")
	pflags.StringVar(&global.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	pflags.StringVar(&global.logFormat, "log-format", "",
		"Log format: text or json")

	root.AddCommand(newRunCmd(&global))
	root.AddCommand(newDevicesCmd(&global))

	return root
}

// loadConfig resolves defaults, file, environment and global flags, in that
// order.
func loadConfig(global *globalFlags) (*config.Config, error) {
	cfg, err := config.LoadFromFile(global.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.ApplyEnv()

	if global.logLevel != "" {
		cfg.Logging.Level = global.logLevel
	}
	if global.logFormat != "" {
		cfg.Logging.Format = global.logFormat
	}

	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}
