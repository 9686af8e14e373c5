// Package config loads benchmark settings from defaults, an optional YAML
// file and LOGIBENCH_* environment variables, in that order of precedence.
//
// Example:
//
//	cfg, err := config.LoadFromFile("logibench.yaml")
//	if err != nil {
//		return err
//	}
//	cfg.ApplyEnv()
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weiihann/logibench/accel"
	"github.com/weiihann/logibench/harness"
	"github.com/weiihann/logibench/recurrence"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete benchmark configuration.
type Config struct {
	Dataset     DatasetConfig     `yaml:"dataset"`
	Recurrence  RecurrenceConfig  `yaml:"recurrence"`
	Warmup      WarmupConfig      `yaml:"warmup"`
	Workers     int               `yaml:"workers"`
	Vector      VectorConfig      `yaml:"vector"`
	Accelerator AcceleratorConfig `yaml:"accelerator"`
	Tolerance   ToleranceConfig   `yaml:"tolerance"`
	Logging     LoggingConfig     `yaml:"logging"`
	Executors   []string          `yaml:"executors"`
}

// DatasetConfig sizes the generated input.
type DatasetConfig struct {
	Length int `yaml:"length"`
}

// RecurrenceConfig holds the logistic-map constants.
type RecurrenceConfig struct {
	Multiplier float32 `yaml:"multiplier"`
	Iterations int     `yaml:"iterations"`
}

// WarmupConfig controls the discarded pass before timing.
type WarmupConfig struct {
	Iterations int `yaml:"iterations"`
	Length     int `yaml:"length"`
}

// VectorConfig tunes the vectorized executor.
type VectorConfig struct {
	// LaneWidth > 0 simulates lanes of that width instead of the hardware's.
	LaneWidth    int `yaml:"lane_width"`
	ChunkDivisor int `yaml:"chunk_divisor"`
}

// AcceleratorConfig selects and limits accelerator backends.
type AcceleratorConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Backends  []string `yaml:"backends"`
	BlockSize int      `yaml:"block_size"`
	// MaxMemoryMB caps host device allocations. Zero is unlimited.
	MaxMemoryMB int `yaml:"max_memory_mb"`
}

// ToleranceConfig bounds checksum disagreement.
type ToleranceConfig struct {
	AcceleratorRelative float64 `yaml:"accelerator_relative"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadDefaults returns the built-in configuration.
func LoadDefaults() *Config {
	return &Config{
		Dataset: DatasetConfig{Length: 10_000_000},
		Recurrence: RecurrenceConfig{
			Multiplier: recurrence.DefaultMultiplier,
			Iterations: 200,
		},
		Warmup: WarmupConfig{Iterations: 5, Length: 65_536},
		Vector: VectorConfig{ChunkDivisor: 4},
		Accelerator: AcceleratorConfig{
			Enabled:   true,
			Backends:  accel.KnownBackends(),
			BlockSize: accel.DefaultBlockSize,
		},
		Tolerance: ToleranceConfig{AcceleratorRelative: 1e-3},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Executors: harness.KnownExecutors(),
	}
}

// LoadFromFile reads path over the defaults. A missing file yields the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := LoadDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from LOGIBENCH_* environment variables.
// Unparseable values are ignored.
func (c *Config) ApplyEnv() {
	c.Dataset.Length = getEnvInt("LOGIBENCH_DATASET_LENGTH", c.Dataset.Length)
	c.Recurrence.Multiplier = float32(getEnvFloat("LOGIBENCH_MULTIPLIER", float64(c.Recurrence.Multiplier)))
	c.Recurrence.Iterations = getEnvInt("LOGIBENCH_ITERATIONS", c.Recurrence.Iterations)
	c.Warmup.Iterations = getEnvInt("LOGIBENCH_WARMUP_ITERATIONS", c.Warmup.Iterations)
	c.Warmup.Length = getEnvInt("LOGIBENCH_WARMUP_LENGTH", c.Warmup.Length)
	c.Workers = getEnvInt("LOGIBENCH_WORKERS", c.Workers)
	c.Vector.LaneWidth = getEnvInt("LOGIBENCH_LANE_WIDTH", c.Vector.LaneWidth)
	c.Vector.ChunkDivisor = getEnvInt("LOGIBENCH_CHUNK_DIVISOR", c.Vector.ChunkDivisor)
	c.Accelerator.Enabled = getEnvBool("LOGIBENCH_ACCELERATOR_ENABLED", c.Accelerator.Enabled)
	c.Accelerator.Backends = getEnvStringSlice("LOGIBENCH_ACCELERATOR_BACKENDS", c.Accelerator.Backends)
	c.Accelerator.BlockSize = getEnvInt("LOGIBENCH_BLOCK_SIZE", c.Accelerator.BlockSize)
	c.Accelerator.MaxMemoryMB = getEnvInt("LOGIBENCH_MAX_MEMORY_MB", c.Accelerator.MaxMemoryMB)
	c.Tolerance.AcceleratorRelative = getEnvFloat("LOGIBENCH_ACCELERATOR_TOLERANCE", c.Tolerance.AcceleratorRelative)
	c.Logging.Level = getEnv("LOGIBENCH_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOGIBENCH_LOG_FORMAT", c.Logging.Format)
	c.Executors = getEnvStringSlice("LOGIBENCH_EXECUTORS", c.Executors)
}

// Validate rejects configurations no executor should run with.
func (c *Config) Validate() error {
	if c.Dataset.Length <= 0 {
		return fmt.Errorf("%w: dataset length must be positive, got %d", ErrInvalid, c.Dataset.Length)
	}

	r := float64(c.Recurrence.Multiplier)
	if math.IsNaN(r) || r <= 0 || r > 4 {
		return fmt.Errorf("%w: multiplier must be in (0, 4], got %v", ErrInvalid, c.Recurrence.Multiplier)
	}

	if c.Recurrence.Iterations < 0 {
		return fmt.Errorf("%w: iterations must be non-negative, got %d", ErrInvalid, c.Recurrence.Iterations)
	}

	if c.Warmup.Iterations < 0 || c.Warmup.Length < 0 {
		return fmt.Errorf("%w: warmup iterations and length must be non-negative", ErrInvalid)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalid, c.Workers)
	}

	if c.Vector.LaneWidth < 0 {
		return fmt.Errorf("%w: lane width must be non-negative, got %d", ErrInvalid, c.Vector.LaneWidth)
	}

	if c.Vector.ChunkDivisor < 1 {
		return fmt.Errorf("%w: chunk divisor must be at least 1, got %d", ErrInvalid, c.Vector.ChunkDivisor)
	}

	if len(c.Executors) == 0 {
		return fmt.Errorf("%w: no executors selected", ErrInvalid)
	}

	for _, name := range c.Executors {
		if !slices.Contains(harness.KnownExecutors(), name) {
			return fmt.Errorf("%w: unknown executor %q", ErrInvalid, name)
		}
	}

	if c.Accelerator.Enabled {
		for _, name := range c.Accelerator.Backends {
			if !slices.Contains(accel.KnownBackends(), name) {
				return fmt.Errorf("%w: unknown accelerator backend %q", ErrInvalid, name)
			}
		}

		if c.Accelerator.BlockSize < 1 || c.Accelerator.BlockSize > 1024 {
			return fmt.Errorf("%w: block size must be in [1, 1024], got %d", ErrInvalid, c.Accelerator.BlockSize)
		}

		if c.Accelerator.MaxMemoryMB < 0 {
			return fmt.Errorf("%w: max memory must be non-negative, got %d", ErrInvalid, c.Accelerator.MaxMemoryMB)
		}
	}

	tol := c.Tolerance.AcceleratorRelative
	if math.IsNaN(tol) || math.IsInf(tol, 0) || tol <= 0 {
		return fmt.Errorf("%w: accelerator tolerance must be positive, got %v", ErrInvalid, tol)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalid, c.Logging.Format)
	}

	return nil
}

// Params returns the recurrence constants.
func (c *Config) Params() recurrence.Params {
	return recurrence.Params{Multiplier: c.Recurrence.Multiplier}
}

// RunConfig returns the per-executor measurement settings.
func (c *Config) RunConfig() harness.RunConfig {
	return harness.RunConfig{
		Iterations:       c.Recurrence.Iterations,
		WarmupIterations: c.Warmup.Iterations,
		WarmupLength:     min(c.Warmup.Length, c.Dataset.Length),
	}
}

// ExecutorNames returns the executors to run, without the accelerator when
// it is disabled.
func (c *Config) ExecutorNames() []string {
	if c.Accelerator.Enabled {
		return slices.Clone(c.Executors)
	}

	return slices.DeleteFunc(slices.Clone(c.Executors), func(name string) bool {
		return name == "accelerator"
	})
}

// MaxMemoryBytes returns the host device allocation cap in bytes.
func (c *Config) MaxMemoryBytes() uint64 {
	return uint64(max(c.Accelerator.MaxMemoryMB, 0)) << 20
}

// SlogLevel parses Logging.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, c.Logging.Level)
	}

	return level, nil
}

// String returns a one-line summary suitable for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Length: %d, Iterations: %d, Multiplier: %v, Workers: %d, LaneWidth: %d, Executors: %v, Backends: %v}",
		c.Dataset.Length, c.Recurrence.Iterations, c.Recurrence.Multiplier,
		c.Workers, c.Vector.LaneWidth, c.ExecutorNames(), c.Accelerator.Backends,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(strings.ReplaceAll(val, "_", "")); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}
