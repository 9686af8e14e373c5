package accel

import (
	"errors"
	"fmt"

	"github.com/weiihann/logibench/accel/cuda"
	"github.com/weiihann/logibench/recurrence"
)

// CUDABackend opens an NVIDIA GPU through the CUDA driver API.
type CUDABackend struct {
	Ordinal   int
	BlockSize int
}

// NewCUDABackend returns a backend for device ordinal.
func NewCUDABackend(ordinal, blockSize int) *CUDABackend {
	return &CUDABackend{Ordinal: ordinal, BlockSize: blockSize}
}

// Name implements Backend.
func (b *CUDABackend) Name() string { return "cuda" }

// Probe implements Backend.
func (b *CUDABackend) Probe() (Device, error) {
	ctx, err := cuda.Open(b.Ordinal)
	if err != nil {
		return nil, cudaError(err)
	}

	blockSize := b.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if limit := ctx.MaxBlockSize(); limit > 0 && blockSize > limit {
		blockSize = limit
	}

	return &cudaDevice{
		ctx: ctx,
		info: DeviceInfo{
			Name:         ctx.Name(),
			Vendor:       "NVIDIA",
			Backend:      b.Name(),
			Kind:         KindDiscrete,
			MemoryBytes:  ctx.MemoryBytes(),
			ComputeUnits: ctx.Multiprocessors(),
			BlockSize:    blockSize,
		},
	}, nil
}

// cudaError maps binding errors onto the package sentinels.
func cudaError(err error) error {
	switch {
	case errors.Is(err, cuda.ErrLibraryNotFound):
		return fmt.Errorf("%w: %w", ErrLibraryUnavailable, err)
	case errors.Is(err, cuda.ErrNoDevice):
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	}

	var cerr *cuda.Error
	if errors.As(err, &cerr) && cerr.OutOfMemory() {
		return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}

	return err
}

type cudaDevice struct {
	ctx  *cuda.Context
	info DeviceInfo

	in  *cuda.Buffer
	out *cuda.Buffer
	n   int
}

func (d *cudaDevice) Info() DeviceInfo { return d.info }

func (d *cudaDevice) CopyIn(data []float32) error {
	if d.in.Len() < len(data) {
		d.freeBuffers()

		in, err := d.ctx.Alloc(len(data))
		if err != nil {
			return fmt.Errorf("allocate input: %w", cudaError(err))
		}

		out, err := d.ctx.Alloc(len(data))
		if err != nil {
			d.ctx.Free(in)
			return fmt.Errorf("allocate output: %w", cudaError(err))
		}

		d.in, d.out = in, out
	}

	d.n = len(data)

	if err := d.ctx.CopyIn(d.in, data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, cudaError(err))
	}

	return nil
}

func (d *cudaDevice) Launch(n int, p recurrence.Params, iterations int) error {
	if n < 0 || n > d.n {
		return fmt.Errorf("%w: %d elements, %d copied in", ErrLaunchFailed, n, d.n)
	}

	if err := d.ctx.Launch(d.in, d.out, n, p.Multiplier, iterations, d.info.BlockSize); err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	return nil
}

func (d *cudaDevice) Synchronize() error {
	if err := d.ctx.Synchronize(); err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	return nil
}

func (d *cudaDevice) CopyOut(dst []float32) error {
	if len(dst) > d.n {
		return fmt.Errorf("%w: %d elements requested, %d on device", ErrTransfer, len(dst), d.n)
	}

	if err := d.ctx.CopyOut(dst, d.out); err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, cudaError(err))
	}

	return nil
}

func (d *cudaDevice) freeBuffers() {
	d.ctx.Free(d.in)
	d.ctx.Free(d.out)
	d.in, d.out = nil, nil
	d.n = 0
}

func (d *cudaDevice) Release() {
	d.freeBuffers()
	d.ctx.Close()
}
