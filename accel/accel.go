// Package accel offloads the recurrence to a massively parallel device.
//
// A Backend probes for one kind of device (a CUDA GPU, or the host CPU
// emulating a device grid) and returns a Device. The Device interface is the
// whole contract between the executor and a vendor compute API: copy in,
// launch one kernel invocation per element, synchronize, copy out. Backends
// can be swapped without touching the CPU executors.
//
// Example:
//
//	exec, status := accel.TryCreate(recurrence.Default(), logger,
//		accel.NewCUDABackend(0, 256), accel.NewHostBackend(256, 0))
//	fmt.Println(status)
//	if exec != nil {
//		defer exec.Close()
//		sum, err := exec.Run(data, 200)
//	}
package accel

import (
	"errors"
	"fmt"

	"github.com/weiihann/logibench/recurrence"
)

// Errors
var (
	ErrNoDevice           = errors.New("accel: no compatible device found")
	ErrLibraryUnavailable = errors.New("accel: vendor compute library not available")
	ErrOutOfMemory        = errors.New("accel: out of device memory")
	ErrTransfer           = errors.New("accel: memory transfer failed")
	ErrLaunchFailed       = errors.New("accel: kernel launch failed")
)

// Kind classifies a device for selection.
type Kind int

const (
	// KindHost is a general-purpose CPU standing in for a device.
	KindHost Kind = iota
	// KindDiscrete is a dedicated massively parallel device.
	KindDiscrete
)

func (k Kind) String() string {
	switch k {
	case KindDiscrete:
		return "discrete"
	case KindHost:
		return "host"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// DeviceInfo describes a probed device.
type DeviceInfo struct {
	Name         string `json:"name"`
	Vendor       string `json:"vendor"`
	Backend      string `json:"backend"`
	Kind         Kind   `json:"kind"`
	MemoryBytes  uint64 `json:"memory_bytes"`
	ComputeUnits int    `json:"compute_units"`
	BlockSize    int    `json:"block_size"`
}

func (i DeviceInfo) String() string {
	s := fmt.Sprintf("%s (%s, %s", i.Name, i.Backend, i.Kind)
	if i.ComputeUnits > 0 {
		s += fmt.Sprintf(", %d compute units", i.ComputeUnits)
	}
	if i.MemoryBytes > 0 {
		s += fmt.Sprintf(", %d MiB", i.MemoryBytes>>20)
	}

	return s + ")"
}

// Backend discovers devices of one vendor API.
type Backend interface {
	Name() string
	// Probe opens a device. Absence of a device or of the vendor library is
	// reported as an error wrapping ErrNoDevice or ErrLibraryUnavailable.
	Probe() (Device, error)
}

// Device runs the logistic-map kernel. Launch may return before the kernel
// has finished; Synchronize waits for it. A Device is used by one goroutine
// at a time.
type Device interface {
	Info() DeviceInfo
	// CopyIn allocates device buffers for len(data) elements and copies data
	// to the device.
	CopyIn(data []float32) error
	// Launch starts one kernel invocation per element for the first n
	// elements copied in.
	Launch(n int, p recurrence.Params, iterations int) error
	Synchronize() error
	// CopyOut copies the first len(dst) results back to the host.
	CopyOut(dst []float32) error
	Release()
}

// Probe is the outcome of probing one backend.
type Probe struct {
	Backend string
	Info    DeviceInfo
	Err     error
}

// probe calls b.Probe, turning a panic inside a vendor binding into an error.
func probe(b Backend) (dev Device, err error) {
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = fmt.Errorf("%w: %s probe panicked: %v", ErrNoDevice, b.Name(), r)
		}
	}()

	return b.Probe()
}

// ProbeAll probes every backend and releases the devices it opened.
func ProbeAll(backends ...Backend) []Probe {
	out := make([]Probe, 0, len(backends))
	for _, b := range backends {
		p := Probe{Backend: b.Name()}

		dev, err := probe(b)
		if err != nil {
			p.Err = err
		} else {
			p.Info = dev.Info()
			dev.Release()
		}

		out = append(out, p)
	}

	return out
}

// SelectDevice probes backends in order and returns the first discrete device,
// or the first host device when no discrete one exists. Devices that are not
// selected are released.
func SelectDevice(backends ...Backend) (Device, error) {
	var (
		best Device
		errs []error
	)

	for _, b := range backends {
		dev, err := probe(b)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}

		if dev.Info().Kind == KindDiscrete {
			if best != nil {
				best.Release()
			}

			return dev, nil
		}

		if best == nil {
			best = dev
		} else {
			dev.Release()
		}
	}

	if best != nil {
		return best, nil
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no backends registered", ErrNoDevice)
	}

	return nil, fmt.Errorf("%w: %w", ErrNoDevice, errors.Join(errs...))
}
