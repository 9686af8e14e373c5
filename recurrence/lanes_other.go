//go:build !(amd64 && goexperiment.simd)

package recurrence

func newSIMDLanes(Params) LaneKernel {
	return nil
}
