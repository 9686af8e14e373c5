package cuda

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestErrorOutOfMemory(t *testing.T) {
	err := check("cuMemAlloc", cudaErrorOutOfMemory)

	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !cerr.OutOfMemory() {
		t.Error("expected OutOfMemory for code 2")
	}
	if !strings.Contains(err.Error(), "cuMemAlloc") {
		t.Errorf("error %q does not name the call", err)
	}

	if check("cuInit", cudaSuccess) != nil {
		t.Error("success code returned an error")
	}
}

func TestNoDeviceCode(t *testing.T) {
	for _, op := range []string{"cuInit", "cuDeviceGetCount"} {
		err := check(op, cudaErrorNoDevice)

		if !errors.Is(err, ErrNoDevice) {
			t.Errorf("%s: error %v is not ErrNoDevice", op, err)
		}

		var cerr *Error
		if !errors.As(err, &cerr) || cerr.Code != cudaErrorNoDevice {
			t.Errorf("%s: expected *Error with code 100, got %v", op, err)
		}
	}

	if errors.Is(check("cuMemAlloc", cudaErrorOutOfMemory), ErrNoDevice) {
		t.Error("out of memory reported as no device")
	}
}

func TestKernelArgs(t *testing.T) {
	var limit int64 = math.MaxInt32
	tooMany := int(limit + 1)

	tests := []struct {
		name       string
		n          int
		iterations int
		wantErr    bool
	}{
		{"in range", 1_000_000, 1000, false},
		{"limits", math.MaxInt32, math.MaxInt32, false},
		{"too many elements", tooMany, 10, true},
		{"too many iterations", 10, tooMany, true},
		{"negative iterations", 10, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, steps, err := kernelArgs(tt.n, tt.iterations)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("kernelArgs(%d, %d) succeeded", tt.n, tt.iterations)
				}
				return
			}

			if err != nil {
				t.Fatalf("kernelArgs: %v", err)
			}
			if int(count) != tt.n || int(steps) != tt.iterations {
				t.Errorf("got (%d, %d), want (%d, %d)", count, steps, tt.n, tt.iterations)
			}
		})
	}
}

func TestCString(t *testing.T) {
	if got := cString([]byte{'g', 'p', 'u', 0, 'x'}); got != "gpu" {
		t.Errorf("cString = %q, want gpu", got)
	}
	if got := cString([]byte("plain")); got != "plain" {
		t.Errorf("cString = %q, want plain", got)
	}
}

func TestCStringsTerminated(t *testing.T) {
	ptrs := cStrings("--fmad=false", "-arch")
	if len(ptrs) != 2 {
		t.Fatalf("got %d pointers", len(ptrs))
	}
	if *ptrs[0] != '-' {
		t.Errorf("first byte = %q", *ptrs[0])
	}
}

func TestKernelSourceDisablesContraction(t *testing.T) {
	for _, want := range []string{"__fmul_rn", "__fsub_rn", KernelName} {
		if !strings.Contains(KernelSource, want) {
			t.Errorf("kernel source missing %q", want)
		}
	}
}

func TestOpenWithoutDriver(t *testing.T) {
	if Available() {
		t.Skip("CUDA driver present")
	}

	_, err := Open(0)
	if err == nil {
		t.Fatal("Open succeeded without a driver")
	}
}
