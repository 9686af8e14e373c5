//go:build amd64 && goexperiment.simd

package recurrence

import (
	"fmt"
	"simd/archsimd"

	"github.com/ajroetker/go-highway/hwy"
)

// newSIMDLanes picks the kernel matching the target hwy selected at startup,
// so the kernel width always equals LaneWidth.
func newSIMDLanes(p Params) LaneKernel {
	switch hwy.CurrentName() {
	case "avx512":
		return &avx512Lanes{
			multiplier: archsimd.BroadcastFloat32x16(p.Multiplier),
			one:        archsimd.BroadcastFloat32x16(1),
		}
	case "avx2":
		return &avx2Lanes{
			multiplier: archsimd.BroadcastFloat32x8(p.Multiplier),
			one:        archsimd.BroadcastFloat32x8(1),
		}
	default:
		return nil
	}
}

type avx2Lanes struct {
	multiplier archsimd.Float32x8
	one        archsimd.Float32x8
}

func (k *avx2Lanes) Width() int { return 8 }

func (k *avx2Lanes) Apply(dst, src []float32, iterations int) {
	v := archsimd.LoadFloat32x8Slice(src[:8])
	for range iterations {
		v = k.multiplier.Mul(v.Mul(k.one.Sub(v)))
	}

	v.StoreSlice(dst[:8])
}

func (k *avx2Lanes) String() string { return fmt.Sprintf("avx2/%d", k.Width()) }

type avx512Lanes struct {
	multiplier archsimd.Float32x16
	one        archsimd.Float32x16
}

func (k *avx512Lanes) Width() int { return 16 }

func (k *avx512Lanes) Apply(dst, src []float32, iterations int) {
	v := archsimd.LoadFloat32x16Slice(src[:16])
	for range iterations {
		v = k.multiplier.Mul(v.Mul(k.one.Sub(v)))
	}

	v.StoreSlice(dst[:16])
}

func (k *avx512Lanes) String() string { return fmt.Sprintf("avx512/%d", k.Width()) }
