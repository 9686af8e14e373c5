// Package recurrence defines the logistic-map update applied by every
// executor, in a scalar form and in lane-parallel forms that are
// arithmetically identical to it.
//
// The operand grouping is part of the contract: x × (1 − x) is rounded to
// float32 first and only then multiplied by the multiplier. Floating-point
// multiplication is not associative, so any executor that regroups the
// product drifts away from the others after a few hundred iterations.
package recurrence

// DefaultMultiplier lies in the chaotic regime of the logistic map, so
// values keep moving inside (0, 1) for any iteration count.
const DefaultMultiplier float32 = 3.96

// Params holds the recurrence constants. It is immutable once built and is
// passed by value into every executor.
type Params struct {
	Multiplier float32 `json:"multiplier" yaml:"multiplier"`
}

// Default returns Params with DefaultMultiplier.
func Default() Params {
	return Params{Multiplier: DefaultMultiplier}
}

// Step applies one update: r × (x × (1 − x)).
//
// The explicit float32 conversion forces the inner product to be rounded
// before the outer multiply, which also keeps the compiler from fusing the
// two operations.
func (p Params) Step(x float32) float32 {
	return p.Multiplier * float32(x*(1-x))
}

// Iterate applies Step iterations times. Each step depends on the previous
// one, so there is no parallelism inside a single element.
func (p Params) Iterate(x float32, iterations int) float32 {
	for range iterations {
		x = p.Step(x)
	}

	return x
}
