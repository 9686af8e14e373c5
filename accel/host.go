package accel

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/logibench/internal/hostinfo"
	"github.com/weiihann/logibench/recurrence"
)

// DefaultBlockSize is the number of kernel invocations grouped per block.
const DefaultBlockSize = 256

// HostBackend exposes the host CPU as a device. Kernel invocations are
// grouped into blocks of BlockSize and each block runs on its own goroutine,
// at most Workers at a time.
type HostBackend struct {
	BlockSize int
	// MaxMemoryBytes caps device allocations. Zero means unlimited.
	MaxMemoryBytes uint64
	Workers        int
}

// NewHostBackend returns a host backend. maxMemoryBytes of zero disables the
// allocation limit.
func NewHostBackend(blockSize int, maxMemoryBytes uint64) *HostBackend {
	return &HostBackend{
		BlockSize:      blockSize,
		MaxMemoryBytes: maxMemoryBytes,
		Workers:        runtime.GOMAXPROCS(0),
	}
}

// Name implements Backend.
func (b *HostBackend) Name() string { return "host" }

// Probe implements Backend. The host device is always present.
func (b *HostBackend) Probe() (Device, error) {
	blockSize := b.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	cpu := hostinfo.Detect()

	return &hostDevice{
		info: DeviceInfo{
			Name:         cpu.CPU,
			Vendor:       cpu.Vendor,
			Backend:      b.Name(),
			Kind:         KindHost,
			MemoryBytes:  b.MaxMemoryBytes,
			ComputeUnits: workers,
			BlockSize:    blockSize,
		},
		limit:   b.MaxMemoryBytes,
		workers: workers,
	}, nil
}

type hostDevice struct {
	info    DeviceInfo
	limit   uint64
	workers int

	in   []float32
	out  []float32
	done chan error
}

func (d *hostDevice) Info() DeviceInfo { return d.info }

func (d *hostDevice) CopyIn(data []float32) error {
	need := uint64(len(data)) * 4 * 2
	if d.limit > 0 && need > d.limit {
		return fmt.Errorf("%w: need %d bytes, limit %d", ErrOutOfMemory, need, d.limit)
	}

	if cap(d.in) < len(data) {
		d.in = make([]float32, len(data))
		d.out = make([]float32, len(data))
	}

	d.in = d.in[:len(data)]
	d.out = d.out[:len(data)]
	copy(d.in, data)

	return nil
}

func (d *hostDevice) Launch(n int, p recurrence.Params, iterations int) error {
	if n < 0 || n > len(d.in) {
		return fmt.Errorf("%w: %d elements, %d copied in", ErrLaunchFailed, n, len(d.in))
	}

	if d.done != nil {
		return fmt.Errorf("%w: previous launch not synchronized", ErrLaunchFailed)
	}

	in, out := d.in, d.out
	block := d.info.BlockSize
	grid := (n + block - 1) / block

	done := make(chan error, 1)
	d.done = done

	go func() {
		var g errgroup.Group
		g.SetLimit(d.workers)

		for blockIdx := range grid {
			g.Go(func() error {
				start := blockIdx * block
				end := min(start+block, n)
				for i := start; i < end; i++ {
					logisticKernel(in, out, i, p, iterations)
				}

				return nil
			})
		}

		done <- g.Wait()
	}()

	return nil
}

// logisticKernel is the body of one invocation: element i, no interaction
// with any other element.
func logisticKernel(in, out []float32, i int, p recurrence.Params, iterations int) {
	out[i] = p.Iterate(in[i], iterations)
}

func (d *hostDevice) Synchronize() error {
	if d.done == nil {
		return nil
	}

	err := <-d.done
	d.done = nil
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	return nil
}

func (d *hostDevice) CopyOut(dst []float32) error {
	if d.done != nil {
		return fmt.Errorf("%w: copy out before synchronize", ErrTransfer)
	}

	if len(dst) > len(d.out) {
		return fmt.Errorf("%w: %d elements requested, %d on device", ErrTransfer, len(dst), len(d.out))
	}

	copy(dst, d.out)

	return nil
}

func (d *hostDevice) Release() {
	if d.done != nil {
		<-d.done
		d.done = nil
	}

	d.in = nil
	d.out = nil
}
