package hostinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestDetect(t *testing.T) {
	info := Detect()

	if info.CPU == "" {
		t.Error("CPU name is empty")
	}
	if info.Arch != runtime.GOARCH {
		t.Errorf("Arch = %s, want %s", info.Arch, runtime.GOARCH)
	}
	if info.LogicalCores <= 0 || info.PhysicalCores <= 0 {
		t.Errorf("cores = %d/%d, want positive", info.PhysicalCores, info.LogicalCores)
	}
	if info.GOMAXPROCS != runtime.GOMAXPROCS(0) {
		t.Errorf("GOMAXPROCS = %d", info.GOMAXPROCS)
	}
	if info.LaneWidth < 1 {
		t.Errorf("LaneWidth = %d, want >= 1", info.LaneWidth)
	}
	if info.SIMDTarget == "" {
		t.Error("SIMDTarget is empty")
	}
}

func TestSummary(t *testing.T) {
	info := Info{
		CPU:           "Test CPU",
		OS:            "linux",
		Arch:          "amd64",
		PhysicalCores: 4,
		LogicalCores:  8,
		GOMAXPROCS:    8,
		SIMDTarget:    "avx2",
		LaneWidth:     8,
	}

	got := info.Summary()
	for _, want := range []string{"Test CPU", "4 cores / 8 threads", "SIMD avx2", "8 float32 lanes", "[none]"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}

	info.Features = []string{"avx", "avx2"}
	if got := info.Summary(); !strings.Contains(got, "[avx,avx2]") {
		t.Errorf("summary %q missing feature list", got)
	}
}
