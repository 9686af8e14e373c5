package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/logibench/recurrence"
)

func TestLoadDefaults(t *testing.T) {
	cfg := LoadDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10_000_000, cfg.Dataset.Length)
	assert.Equal(t, recurrence.DefaultMultiplier, cfg.Recurrence.Multiplier)
	assert.Equal(t, 200, cfg.Recurrence.Iterations)
	assert.Equal(t, 5, cfg.Warmup.Iterations)
	assert.Equal(t, 4, cfg.Vector.ChunkDivisor)
	assert.True(t, cfg.Accelerator.Enabled)
	assert.Equal(t, []string{"cuda", "host"}, cfg.Accelerator.Backends)
	assert.Equal(t, []string{"scalar", "threaded", "vectorized", "accelerator"}, cfg.Executors)
	assert.Equal(t, 1e-3, cfg.Tolerance.AcceleratorRelative)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, LoadDefaults(), cfg)
}

func TestLoadFromFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logibench.yaml")
	content := `
dataset:
  length: 4096
recurrence:
  iterations: 50
vector:
  lane_width: 8
accelerator:
  enabled: false
executors: [scalar, vectorized]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4096, cfg.Dataset.Length)
	assert.Equal(t, 50, cfg.Recurrence.Iterations)
	assert.Equal(t, 8, cfg.Vector.LaneWidth)
	assert.False(t, cfg.Accelerator.Enabled)
	assert.Equal(t, []string{"scalar", "vectorized"}, cfg.Executors)

	// Untouched keys keep their defaults.
	assert.Equal(t, recurrence.DefaultMultiplier, cfg.Recurrence.Multiplier)
	assert.Equal(t, 5, cfg.Warmup.Iterations)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset: [unclosed"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LOGIBENCH_DATASET_LENGTH", "1_000")
	t.Setenv("LOGIBENCH_ITERATIONS", "7")
	t.Setenv("LOGIBENCH_MULTIPLIER", "3.5")
	t.Setenv("LOGIBENCH_WORKERS", "3")
	t.Setenv("LOGIBENCH_ACCELERATOR_ENABLED", "no")
	t.Setenv("LOGIBENCH_EXECUTORS", "scalar, threaded ,")
	t.Setenv("LOGIBENCH_LOG_FORMAT", "json")
	t.Setenv("LOGIBENCH_WARMUP_ITERATIONS", "not-a-number")

	cfg := LoadDefaults()
	cfg.ApplyEnv()

	assert.Equal(t, 1000, cfg.Dataset.Length)
	assert.Equal(t, 7, cfg.Recurrence.Iterations)
	assert.Equal(t, float32(3.5), cfg.Recurrence.Multiplier)
	assert.Equal(t, 3, cfg.Workers)
	assert.False(t, cfg.Accelerator.Enabled)
	assert.Equal(t, []string{"scalar", "threaded"}, cfg.Executors)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Warmup.Iterations, "unparseable value must be ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero length", func(c *Config) { c.Dataset.Length = 0 }},
		{"negative iterations", func(c *Config) { c.Recurrence.Iterations = -1 }},
		{"multiplier above four", func(c *Config) { c.Recurrence.Multiplier = 4.5 }},
		{"zero multiplier", func(c *Config) { c.Recurrence.Multiplier = 0 }},
		{"negative warmup", func(c *Config) { c.Warmup.Iterations = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"negative lane width", func(c *Config) { c.Vector.LaneWidth = -4 }},
		{"zero chunk divisor", func(c *Config) { c.Vector.ChunkDivisor = 0 }},
		{"no executors", func(c *Config) { c.Executors = nil }},
		{"unknown executor", func(c *Config) { c.Executors = []string{"scalar", "fpga"} }},
		{"unknown backend", func(c *Config) { c.Accelerator.Backends = []string{"metal"} }},
		{"block size too large", func(c *Config) { c.Accelerator.BlockSize = 2048 }},
		{"negative memory", func(c *Config) { c.Accelerator.MaxMemoryMB = -1 }},
		{"zero tolerance", func(c *Config) { c.Tolerance.AcceleratorRelative = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadDefaults()
			tt.mutate(cfg)

			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidateIgnoresBackendsWhenDisabled(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Accelerator.Enabled = false
	cfg.Accelerator.Backends = []string{"metal"}
	cfg.Accelerator.BlockSize = 0

	assert.NoError(t, cfg.Validate())
}

func TestDerived(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Dataset.Length = 1000
	cfg.Accelerator.MaxMemoryMB = 2

	assert.Equal(t, recurrence.Default(), cfg.Params())

	run := cfg.RunConfig()
	assert.Equal(t, 200, run.Iterations)
	assert.Equal(t, 5, run.WarmupIterations)
	assert.Equal(t, 1000, run.WarmupLength)

	assert.Equal(t, uint64(2<<20), cfg.MaxMemoryBytes())

	cfg.Accelerator.Enabled = false
	assert.Equal(t, []string{"scalar", "threaded", "vectorized"}, cfg.ExecutorNames())
	assert.Len(t, cfg.Executors, 4, "ExecutorNames must not modify the config")

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	assert.Contains(t, cfg.String(), "Length: 1000")
}
