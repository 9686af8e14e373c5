package recurrence

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepGrouping(t *testing.T) {
	p := Default()

	for _, x := range []float32{0.1, 0.25, 0.5, 0.731, 0.999} {
		inner := x * (1 - x)
		want := p.Multiplier * inner
		assert.Equal(t, want, p.Step(x), "x=%v", x)
	}
}

func TestStepHalf(t *testing.T) {
	p := Default()

	assert.Equal(t, float32(0.99), p.Step(0.5))
}

func TestIterateZero(t *testing.T) {
	p := Default()

	for _, x := range []float32{0.1, 0.5, 0.9} {
		assert.Equal(t, x, p.Iterate(x, 0))
		assert.Equal(t, x, p.Iterate(x, -3))
	}
}

func TestIterateMatchesRepeatedStep(t *testing.T) {
	p := Default()
	x := float32(0.3)

	want := x
	for range 150 {
		want = p.Step(want)
	}

	assert.Equal(t, want, p.Iterate(x, 150))
}

func TestIterateStaysInRange(t *testing.T) {
	p := Default()

	x := p.Iterate(0.2, 10000)
	assert.Greater(t, x, float32(0))
	assert.Less(t, x, float32(1))
}

func TestCustomMultiplier(t *testing.T) {
	p := Params{Multiplier: 2}

	assert.Equal(t, float32(0.5), p.Step(0.5))
}

func TestLaneWidthDiscovered(t *testing.T) {
	width := LaneWidth()

	require.Positive(t, width)
	assert.Zero(t, width&(width-1), "lane width %d is not a power of two", width)
	assert.NotEmpty(t, Target())
}

func laneInput(n int) []float32 {
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(math.Sin(float64(i)*0.37)*0.45 + 0.5)
	}

	return src
}

func TestLaneKernelsMatchScalar(t *testing.T) {
	p := Default()

	kernels := []LaneKernel{
		NewHardwareLanes(p),
		NewPortableLanes(p, 4),
		NewPortableLanes(p, 8),
		NewPortableLanes(p, 16),
	}

	for _, k := range kernels {
		for _, iterations := range []int{0, 1, 7, 200} {
			t.Run(fmt.Sprintf("%s/n=%d", k, iterations), func(t *testing.T) {
				src := laneInput(k.Width())
				dst := make([]float32, k.Width())

				k.Apply(dst, src, iterations)

				for i := range src {
					assert.Equal(t, p.Iterate(src[i], iterations), dst[i], "lane %d", i)
				}
			})
		}
	}
}

func TestLaneKernelsDoNotAllocate(t *testing.T) {
	p := Default()

	for _, k := range []LaneKernel{NewHardwareLanes(p), NewPortableLanes(p, 8)} {
		t.Run(k.String(), func(t *testing.T) {
			src := laneInput(k.Width())
			dst := make([]float32, k.Width())

			allocs := testing.AllocsPerRun(100, func() {
				k.Apply(dst, src, 64)
			})

			assert.Zero(t, allocs)
		})
	}
}

func TestLaneKernelLeavesSourceUntouched(t *testing.T) {
	p := Default()
	k := NewPortableLanes(p, 8)

	src := laneInput(8)
	orig := append([]float32(nil), src...)
	dst := make([]float32, 8)

	k.Apply(dst, src, 25)

	assert.Equal(t, orig, src)
}

func TestPortableLanesMinimumWidth(t *testing.T) {
	k := NewPortableLanes(Default(), 0)

	assert.Equal(t, 1, k.Width())
	assert.Equal(t, "portable/1", k.String())
}
