package recurrence

import (
	"fmt"

	"github.com/ajroetker/go-highway/hwy"
)

// LaneKernel applies the recurrence to a fixed-width group of values in
// lockstep. Apply reads src[:Width()] and writes the final lanes to
// dst[:Width()]; both must hold at least Width() elements.
type LaneKernel interface {
	Width() int
	Apply(dst, src []float32, iterations int)
	String() string
}

// LaneWidth reports how many float32 lanes the running CPU processes per
// vector instruction. It is discovered at startup, never hardcoded.
func LaneWidth() int {
	return hwy.MaxLanes[float32]()
}

// Target names the SIMD instruction set selected at startup.
func Target() string {
	if name := hwy.CurrentName(); name != "" {
		return name
	}

	return hwy.CurrentLevel().String()
}

// NewHardwareLanes returns the LaneKernel for the running CPU. Builds with
// GOEXPERIMENT=simd on amd64 get AVX2 or AVX-512 kernels on archsimd
// vectors; every other build gets portable lanes at the discovered width.
func NewHardwareLanes(p Params) LaneKernel {
	if k := newSIMDLanes(p); k != nil {
		return k
	}

	return NewPortableLanes(p, LaneWidth())
}

type portableLanes struct {
	params Params
	width  int
}

// NewPortableLanes returns a LaneKernel of an arbitrary width written in
// plain Go. It serves as the hardware kernel when no SIMD kernel is built in
// and simulates hardware of a different width otherwise. Widths below one
// are treated as one. Apply does not allocate.
func NewPortableLanes(p Params, width int) LaneKernel {
	return &portableLanes{params: p, width: max(width, 1)}
}

func (k *portableLanes) Width() int {
	return k.width
}

func (k *portableLanes) Apply(dst, src []float32, iterations int) {
	lanes := dst[:k.width]
	copy(lanes, src[:k.width])

	for range iterations {
		for i, x := range lanes {
			lanes[i] = k.params.Step(x)
		}
	}
}

func (k *portableLanes) String() string {
	return fmt.Sprintf("portable/%d", k.width)
}
