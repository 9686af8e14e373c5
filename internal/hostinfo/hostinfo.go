// Package hostinfo describes the machine a benchmark runs on.
package hostinfo

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"

	"github.com/weiihann/logibench/recurrence"
)

// Info is a snapshot of the host CPU and the SIMD target in use.
type Info struct {
	CPU           string   `json:"cpu"`
	Vendor        string   `json:"vendor"`
	OS            string   `json:"os"`
	Arch          string   `json:"arch"`
	PhysicalCores int      `json:"physical_cores"`
	LogicalCores  int      `json:"logical_cores"`
	GOMAXPROCS    int      `json:"gomaxprocs"`
	Features      []string `json:"features"`
	SIMDTarget    string   `json:"simd_target"`
	LaneWidth     int      `json:"lane_width"`
}

// Detect reads the host description.
func Detect() Info {
	info := Info{
		CPU:           strings.TrimSpace(cpuid.CPU.BrandName),
		Vendor:        cpuid.CPU.VendorString,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		Features:      Features(),
		SIMDTarget:    recurrence.Target(),
		LaneWidth:     recurrence.LaneWidth(),
	}

	if info.CPU == "" {
		info.CPU = "unknown " + runtime.GOARCH + " CPU"
	}

	if info.LogicalCores <= 0 {
		info.LogicalCores = runtime.NumCPU()
	}

	if info.PhysicalCores <= 0 {
		info.PhysicalCores = info.LogicalCores
	}

	return info
}

// Features lists the vector instruction sets the CPU reports.
func Features() []string {
	var out []string

	add := func(ok bool, name string) {
		if ok {
			out = append(out, name)
		}
	}

	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE2, "sse2")
		add(cpu.X86.HasSSE41, "sse4.1")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
	case "arm64":
		add(cpu.ARM64.HasASIMD, "neon")
		add(cpu.ARM64.HasSVE, "sve")
		add(cpu.ARM64.HasSVE2, "sve2")
	}

	return out
}

// Summary renders a one-line description for report headers.
func (i Info) Summary() string {
	features := "none"
	if len(i.Features) > 0 {
		features = strings.Join(i.Features, ",")
	}

	return fmt.Sprintf("%s (%d cores / %d threads, GOMAXPROCS=%d), %s/%s, SIMD %s, %d float32 lanes [%s]",
		i.CPU, i.PhysicalCores, i.LogicalCores, i.GOMAXPROCS,
		i.OS, i.Arch, i.SIMDTarget, i.LaneWidth, features)
}
