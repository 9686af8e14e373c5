//go:build linux

package cuda

import (
	"fmt"

	"github.com/ebitengine/purego"
)

var (
	driverLibraries = []string{"libcuda.so.1", "libcuda.so"}
	nvrtcLibraries  = []string{
		"libnvrtc.so",
		"libnvrtc.so.13",
		"libnvrtc.so.12",
		"libnvrtc.so.11.2",
	}
)

func openFirst(names []string) (uintptr, error) {
	var lastErr error
	for _, name := range names {
		lib, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return lib, nil
		}
		lastErr = err
	}

	return 0, fmt.Errorf("%w: %v", ErrLibraryNotFound, lastErr)
}

type symbol struct {
	fptr any
	name string
}

func register(lib uintptr, symbols []symbol) error {
	for _, s := range symbols {
		addr, err := purego.Dlsym(lib, s.name)
		if err != nil {
			return fmt.Errorf("%w: missing symbol %s", ErrLibraryNotFound, s.name)
		}
		purego.RegisterFunc(s.fptr, addr)
	}

	return nil
}

func load() error {
	driver, err := openFirst(driverLibraries)
	if err != nil {
		return err
	}

	err = register(driver, []symbol{
		{&cuInit, "cuInit"},
		{&cuDeviceGetCount, "cuDeviceGetCount"},
		{&cuDeviceGet, "cuDeviceGet"},
		{&cuDeviceGetName, "cuDeviceGetName"},
		{&cuDeviceTotalMem, "cuDeviceTotalMem_v2"},
		{&cuDeviceGetAttribute, "cuDeviceGetAttribute"},
		{&cuCtxCreate, "cuCtxCreate_v2"},
		{&cuCtxDestroy, "cuCtxDestroy_v2"},
		{&cuCtxSetCurrent, "cuCtxSetCurrent"},
		{&cuCtxSynchronize, "cuCtxSynchronize"},
		{&cuModuleLoadData, "cuModuleLoadData"},
		{&cuModuleUnload, "cuModuleUnload"},
		{&cuModuleGetFunction, "cuModuleGetFunction"},
		{&cuMemAlloc, "cuMemAlloc_v2"},
		{&cuMemFree, "cuMemFree_v2"},
		{&cuMemcpyHtoD, "cuMemcpyHtoD_v2"},
		{&cuMemcpyDtoH, "cuMemcpyDtoH_v2"},
		{&cuLaunchKernel, "cuLaunchKernel"},
	})
	if err != nil {
		return err
	}

	nvrtc, err := openFirst(nvrtcLibraries)
	if err != nil {
		return fmt.Errorf("nvrtc: %w", err)
	}

	return register(nvrtc, []symbol{
		{&nvrtcCreateProgram, "nvrtcCreateProgram"},
		{&nvrtcCompileProgram, "nvrtcCompileProgram"},
		{&nvrtcGetPTXSize, "nvrtcGetPTXSize"},
		{&nvrtcGetPTX, "nvrtcGetPTX"},
		{&nvrtcGetProgramLogSize, "nvrtcGetProgramLogSize"},
		{&nvrtcGetProgramLog, "nvrtcGetProgramLog"},
		{&nvrtcDestroyProgram, "nvrtcDestroyProgram"},
	})
}
