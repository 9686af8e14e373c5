package accel

import (
	"fmt"
	"log/slog"

	"github.com/weiihann/logibench/recurrence"
)

// Status reports whether an accelerator is available and which device was
// chosen, or why none was.
type Status struct {
	Available bool       `json:"available"`
	Device    DeviceInfo `json:"device"`
	Reason    string     `json:"reason,omitempty"`
}

func (s Status) String() string {
	if !s.Available {
		return "accelerator: skipped: " + s.Reason
	}

	return "accelerator: using " + s.Device.String()
}

// Executor runs the recurrence on a device. It implements the same contract
// as the CPU executors.
type Executor struct {
	device Device
	params recurrence.Params
	logger *slog.Logger
}

// TryCreate selects a device from backends. A missing device is not an
// error: the executor is nil and Status carries the reason.
func TryCreate(p recurrence.Params, logger *slog.Logger, backends ...Backend) (*Executor, Status) {
	dev, err := SelectDevice(backends...)
	if err != nil {
		logger.Info("no accelerator selected", slog.String("reason", err.Error()))

		return nil, Status{Reason: err.Error()}
	}

	info := dev.Info()
	logger.Info("accelerator selected",
		slog.String("device", info.Name),
		slog.String("backend", info.Backend),
		slog.String("kind", info.Kind.String()),
	)

	return &Executor{
		device: dev,
		params: p,
		logger: logger.With(slog.String("device", info.Name)),
	}, Status{Available: true, Device: info}
}

// NewExecutor wraps an already opened device.
func NewExecutor(p recurrence.Params, dev Device, logger *slog.Logger) *Executor {
	return &Executor{device: dev, params: p, logger: logger}
}

// Name implements executor.Executor.
func (e *Executor) Name() string { return "accelerator" }

// Device describes the selected device.
func (e *Executor) Device() DeviceInfo { return e.device.Info() }

// Run copies data to the device, launches one invocation per element, waits,
// copies the results back and sums them on the host in ascending index
// order. data is not modified.
func (e *Executor) Run(data []float32, iterations int) (float64, error) {
	if len(data) == 0 {
		return 0, nil
	}

	if err := e.device.CopyIn(data); err != nil {
		return 0, fmt.Errorf("copy in %d elements: %w", len(data), err)
	}

	if err := e.device.Launch(len(data), e.params, iterations); err != nil {
		return 0, fmt.Errorf("launch: %w", err)
	}

	if err := e.device.Synchronize(); err != nil {
		return 0, fmt.Errorf("synchronize: %w", err)
	}

	out := make([]float32, len(data))
	if err := e.device.CopyOut(out); err != nil {
		return 0, fmt.Errorf("copy out %d elements: %w", len(out), err)
	}

	var sum float64
	for _, v := range out {
		sum += float64(v)
	}

	return sum, nil
}

// Close releases the device.
func (e *Executor) Close() {
	e.device.Release()
}

// KnownBackends returns the supported backend names in probe order.
func KnownBackends() []string {
	return []string{"cuda", "host"}
}

// NewBackends builds backends by name. blockSize applies to every backend;
// maxMemoryBytes limits the host device only.
func NewBackends(names []string, blockSize int, maxMemoryBytes uint64) ([]Backend, error) {
	backends := make([]Backend, 0, len(names))
	for _, name := range names {
		switch name {
		case "cuda":
			backends = append(backends, NewCUDABackend(0, blockSize))
		case "host":
			backends = append(backends, NewHostBackend(blockSize, maxMemoryBytes))
		default:
			return nil, fmt.Errorf("unknown accelerator backend %q (known: %v)", name, KnownBackends())
		}
	}

	return backends, nil
}
