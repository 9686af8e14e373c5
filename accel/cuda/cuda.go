// Package cuda binds the parts of the CUDA driver API and NVRTC needed to
// compile and run the logistic-map kernel.
//
// The libraries are loaded at runtime with purego, so binaries build without
// cgo and without the CUDA toolkit, and run unchanged on machines that have
// no NVIDIA driver: Open simply returns ErrLibraryNotFound there.
package cuda

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"unsafe"
)

// Driver API result codes used by this package.
const (
	cudaSuccess           = 0
	cudaErrorOutOfMemory  = 2
	cudaErrorNoDevice     = 100
	nvrtcSuccess          = 0
	attrMultiprocessorCnt = 16
	attrMaxThreadsPerBlk  = 1
)

// KernelName is the entry point compiled from KernelSource.
const KernelName = "logistic"

// KernelSource is the device kernel: one thread per element, no interaction
// between threads. The round-to-nearest intrinsics keep x × (1 − x) rounded
// before the multiply by r and stop the compiler from contracting the two
// products into an FMA.
const KernelSource = `
extern "C" __global__ void logistic(const float* in, float* out, int n, float r, int iterations) {
    int i = blockIdx.x * blockDim.x + threadIdx.x;
    if (i >= n) {
        return;
    }
    float x = in[i];
    for (int k = 0; k < iterations; ++k) {
        x = __fmul_rn(r, __fmul_rn(x, __fsub_rn(1.0f, x)));
    }
    out[i] = x;
}
`

// Errors
var (
	ErrLibraryNotFound = errors.New("cuda: driver library not found")
	ErrNoDevice        = errors.New("cuda: no CUDA device present")
	ErrCompile         = errors.New("cuda: kernel compilation failed")
)

// Error is a non-success driver or NVRTC result.
type Error struct {
	Op   string
	Code int32
}

func (e *Error) Error() string {
	return fmt.Sprintf("cuda: %s failed (code %d)", e.Op, e.Code)
}

// OutOfMemory reports whether the driver ran out of device memory.
func (e *Error) OutOfMemory() bool {
	return e.Code == cudaErrorOutOfMemory
}

// check converts a driver result code into an error. A missing device is
// reported as ErrNoDevice whichever call noticed it.
func check(op string, code int32) error {
	switch code {
	case cudaSuccess:
		return nil
	case cudaErrorNoDevice:
		return fmt.Errorf("%w: %w", ErrNoDevice, &Error{Op: op, Code: code})
	default:
		return &Error{Op: op, Code: code}
	}
}

// Driver and NVRTC entry points, bound by load.
var (
	cuInit               func(flags uint32) int32
	cuDeviceGetCount     func(count *int32) int32
	cuDeviceGet          func(device *int32, ordinal int32) int32
	cuDeviceGetName      func(name *byte, length int32, dev int32) int32
	cuDeviceTotalMem     func(bytes *uint64, dev int32) int32
	cuDeviceGetAttribute func(value *int32, attrib int32, dev int32) int32
	cuCtxCreate          func(ctx *uintptr, flags uint32, dev int32) int32
	cuCtxDestroy         func(ctx uintptr) int32
	cuCtxSetCurrent      func(ctx uintptr) int32
	cuCtxSynchronize     func() int32
	cuModuleLoadData     func(module *uintptr, image unsafe.Pointer) int32
	cuModuleUnload       func(module uintptr) int32
	cuModuleGetFunction  func(fn *uintptr, module uintptr, name string) int32
	cuMemAlloc           func(ptr *uint64, size uint64) int32
	cuMemFree            func(ptr uint64) int32
	cuMemcpyHtoD         func(dst uint64, src unsafe.Pointer, size uint64) int32
	cuMemcpyDtoH         func(dst unsafe.Pointer, src uint64, size uint64) int32
	cuLaunchKernel       func(fn uintptr, gridX, gridY, gridZ, blockX, blockY, blockZ, sharedMem uint32, stream uintptr, params unsafe.Pointer, extra unsafe.Pointer) int32

	nvrtcCreateProgram     func(prog *uintptr, src string, name string, numHeaders int32, headers unsafe.Pointer, includeNames unsafe.Pointer) int32
	nvrtcCompileProgram    func(prog uintptr, numOptions int32, options unsafe.Pointer) int32
	nvrtcGetPTXSize        func(prog uintptr, size *uint64) int32
	nvrtcGetPTX            func(prog uintptr, ptx *byte) int32
	nvrtcGetProgramLogSize func(prog uintptr, size *uint64) int32
	nvrtcGetProgramLog     func(prog uintptr, log *byte) int32
	nvrtcDestroyProgram    func(prog *uintptr) int32
)

var (
	initOnce sync.Once
	initErr  error
)

// initDriver loads the libraries and calls cuInit once per process.
func initDriver() error {
	initOnce.Do(func() {
		if err := load(); err != nil {
			initErr = err
			return
		}

		initErr = check("cuInit", cuInit(0))
	})

	return initErr
}

// Available reports whether the CUDA driver could be loaded and initialized.
func Available() bool {
	return initDriver() == nil
}

// DeviceCount returns the number of CUDA devices.
func DeviceCount() (int, error) {
	if err := initDriver(); err != nil {
		return 0, err
	}

	var count int32
	if err := check("cuDeviceGetCount", cuDeviceGetCount(&count)); err != nil {
		return 0, err
	}

	return int(count), nil
}

// Context is a CUDA context on one device with the kernel loaded.
type Context struct {
	ctx          uintptr
	module       uintptr
	function     uintptr
	ordinal      int
	name         string
	memory       uint64
	multiprocs   int
	maxBlockSize int
	mu           sync.Mutex
}

// Open creates a context on device ordinal and compiles the kernel for it.
func Open(ordinal int) (*Context, error) {
	count, err := DeviceCount()
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, ErrNoDevice
	}

	if ordinal < 0 || ordinal >= count {
		ordinal = 0
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var dev int32
	if err := check("cuDeviceGet", cuDeviceGet(&dev, int32(ordinal))); err != nil {
		return nil, err
	}

	c := &Context{ordinal: ordinal}

	nameBuf := make([]byte, 256)
	if err := check("cuDeviceGetName", cuDeviceGetName(&nameBuf[0], int32(len(nameBuf)), dev)); err != nil {
		return nil, err
	}

	c.name = cString(nameBuf)

	if err := check("cuDeviceTotalMem", cuDeviceTotalMem(&c.memory, dev)); err != nil {
		return nil, err
	}

	var attr int32
	if cuDeviceGetAttribute(&attr, attrMultiprocessorCnt, dev) == cudaSuccess {
		c.multiprocs = int(attr)
	}

	if cuDeviceGetAttribute(&attr, attrMaxThreadsPerBlk, dev) == cudaSuccess {
		c.maxBlockSize = int(attr)
	}

	if err := check("cuCtxCreate", cuCtxCreate(&c.ctx, 0, dev)); err != nil {
		return nil, err
	}

	ptx, err := compile(KernelSource)
	if err != nil {
		cuCtxDestroy(c.ctx)
		return nil, err
	}

	if err := check("cuModuleLoadData", cuModuleLoadData(&c.module, unsafe.Pointer(&ptx[0]))); err != nil {
		cuCtxDestroy(c.ctx)
		return nil, err
	}

	if err := check("cuModuleGetFunction", cuModuleGetFunction(&c.function, c.module, KernelName)); err != nil {
		cuModuleUnload(c.module)
		cuCtxDestroy(c.ctx)
		return nil, err
	}

	return c, nil
}

// compile turns CUDA C source into NUL-terminated PTX with NVRTC.
func compile(src string) ([]byte, error) {
	var prog uintptr
	if err := check("nvrtcCreateProgram", nvrtcCreateProgram(&prog, src, "logistic.cu", 0, nil, nil)); err != nil {
		return nil, err
	}
	defer nvrtcDestroyProgram(&prog)

	opts := cStrings("--fmad=false")
	if code := nvrtcCompileProgram(prog, int32(len(opts)), unsafe.Pointer(&opts[0])); code != nvrtcSuccess {
		return nil, fmt.Errorf("%w: %s", ErrCompile, programLog(prog))
	}
	runtime.KeepAlive(opts)

	var size uint64
	if err := check("nvrtcGetPTXSize", nvrtcGetPTXSize(prog, &size)); err != nil {
		return nil, err
	}

	ptx := make([]byte, size)
	if err := check("nvrtcGetPTX", nvrtcGetPTX(prog, &ptx[0])); err != nil {
		return nil, err
	}

	return ptx, nil
}

func programLog(prog uintptr) string {
	var size uint64
	if nvrtcGetProgramLogSize(prog, &size) != nvrtcSuccess || size == 0 {
		return "no log"
	}

	buf := make([]byte, size)
	if nvrtcGetProgramLog(prog, &buf[0]) != nvrtcSuccess {
		return "no log"
	}

	return strings.TrimSpace(cString(buf))
}

// bind makes c current on the calling OS thread. The returned func must be
// called when the driver calls are done.
func (c *Context) bind() (func(), error) {
	c.mu.Lock()
	runtime.LockOSThread()

	release := func() {
		runtime.UnlockOSThread()
		c.mu.Unlock()
	}

	if err := check("cuCtxSetCurrent", cuCtxSetCurrent(c.ctx)); err != nil {
		release()
		return nil, err
	}

	return release, nil
}

// Name returns the device name reported by the driver.
func (c *Context) Name() string { return c.name }

// Ordinal returns the device ordinal.
func (c *Context) Ordinal() int { return c.ordinal }

// MemoryBytes returns total device memory.
func (c *Context) MemoryBytes() uint64 { return c.memory }

// Multiprocessors returns the streaming multiprocessor count.
func (c *Context) Multiprocessors() int { return c.multiprocs }

// MaxBlockSize returns the maximum threads per block.
func (c *Context) MaxBlockSize() int { return c.maxBlockSize }

// Buffer is a device allocation of float32 values.
type Buffer struct {
	ptr   uint64
	count int
}

// Len returns the number of float32 values the buffer holds.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}

	return b.count
}

// Alloc reserves count float32 values of device memory.
func (c *Context) Alloc(count int) (*Buffer, error) {
	release, err := c.bind()
	if err != nil {
		return nil, err
	}
	defer release()

	b := &Buffer{count: count}
	if err := check("cuMemAlloc", cuMemAlloc(&b.ptr, uint64(count)*4)); err != nil {
		return nil, err
	}

	return b, nil
}

// Free releases b.
func (c *Context) Free(b *Buffer) {
	if b == nil || b.ptr == 0 {
		return
	}

	release, err := c.bind()
	if err != nil {
		return
	}
	defer release()

	cuMemFree(b.ptr)
	b.ptr = 0
}

// CopyIn copies src to the start of b.
func (c *Context) CopyIn(b *Buffer, src []float32) error {
	if len(src) == 0 {
		return nil
	}

	if len(src) > b.count {
		return fmt.Errorf("cuda: copy of %d values into buffer of %d", len(src), b.count)
	}

	release, err := c.bind()
	if err != nil {
		return err
	}
	defer release()

	return check("cuMemcpyHtoD", cuMemcpyHtoD(b.ptr, unsafe.Pointer(&src[0]), uint64(len(src))*4))
}

// CopyOut copies the start of b into dst.
func (c *Context) CopyOut(dst []float32, b *Buffer) error {
	if len(dst) == 0 {
		return nil
	}

	if len(dst) > b.count {
		return fmt.Errorf("cuda: copy of %d values from buffer of %d", len(dst), b.count)
	}

	release, err := c.bind()
	if err != nil {
		return err
	}
	defer release()

	return check("cuMemcpyDtoH", cuMemcpyDtoH(unsafe.Pointer(&dst[0]), b.ptr, uint64(len(dst))*4))
}

// Launch starts the kernel over n elements with blockSize threads per block.
// It returns without waiting for the kernel to finish.
func (c *Context) Launch(in, out *Buffer, n int, r float32, iterations, blockSize int) error {
	if n == 0 {
		return nil
	}

	if blockSize <= 0 || (c.maxBlockSize > 0 && blockSize > c.maxBlockSize) {
		return fmt.Errorf("cuda: invalid block size %d", blockSize)
	}

	count, steps, err := kernelArgs(n, iterations)
	if err != nil {
		return err
	}

	release, err := c.bind()
	if err != nil {
		return err
	}
	defer release()

	inPtr, outPtr := in.ptr, out.ptr

	params := []unsafe.Pointer{
		unsafe.Pointer(&inPtr),
		unsafe.Pointer(&outPtr),
		unsafe.Pointer(&count),
		unsafe.Pointer(&r),
		unsafe.Pointer(&steps),
	}

	grid := uint32((n + blockSize - 1) / blockSize)
	code := cuLaunchKernel(c.function, grid, 1, 1, uint32(blockSize), 1, 1, 0, 0,
		unsafe.Pointer(&params[0]), nil)
	runtime.KeepAlive(params)

	return check("cuLaunchKernel", code)
}

// kernelArgs narrows the element and iteration counts to the kernel's int
// parameters.
func kernelArgs(n, iterations int) (int32, int32, error) {
	if n < 0 || n > math.MaxInt32 {
		return 0, 0, fmt.Errorf("cuda: element count %d out of kernel range", n)
	}

	if iterations < 0 || iterations > math.MaxInt32 {
		return 0, 0, fmt.Errorf("cuda: iteration count %d out of kernel range", iterations)
	}

	return int32(n), int32(iterations), nil
}

// Synchronize waits for every launched kernel on the context.
func (c *Context) Synchronize() error {
	release, err := c.bind()
	if err != nil {
		return err
	}
	defer release()

	return check("cuCtxSynchronize", cuCtxSynchronize())
}

// Close unloads the kernel and destroys the context.
func (c *Context) Close() {
	if c.ctx == 0 {
		return
	}

	release, err := c.bind()
	if err == nil {
		cuModuleUnload(c.module)
		release()
	}

	cuCtxDestroy(c.ctx)
	c.ctx = 0
	c.module = 0
}

func cString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}

	return string(buf)
}

// cStrings returns NUL-terminated copies of values as C string pointers.
func cStrings(values ...string) []*byte {
	ptrs := make([]*byte, len(values))
	for i, v := range values {
		b := append([]byte(v), 0)
		ptrs[i] = &b[0]
	}

	return ptrs
}
