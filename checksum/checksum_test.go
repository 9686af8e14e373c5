package checksum

import (
	"math"
	"testing"
)

func TestCPUToleranceNeverZero(t *testing.T) {
	if tol := CPUTolerance(0, 0, 0); tol <= 0 {
		t.Errorf("CPUTolerance(0, 0, 0) = %v, want > 0", tol)
	}
}

func TestCPUToleranceGrows(t *testing.T) {
	base := CPUTolerance(4, 1000, 10)

	tests := []struct {
		name string
		tol  float64
	}{
		{name: "more workers", tol: CPUTolerance(16, 1000, 10)},
		{name: "longer dataset", tol: CPUTolerance(4, 100000, 10)},
		{name: "more iterations", tol: CPUTolerance(4, 1000, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tol <= base {
				t.Errorf("tolerance %v, want > %v", tt.tol, base)
			}
		})
	}
}

func TestCPUToleranceScalesWithSqrtWorkers(t *testing.T) {
	got := CPUTolerance(16, 100, 0) / CPUTolerance(4, 100, 0)
	if math.Abs(got-2) > 1e-12 {
		t.Errorf("ratio = %v, want 2", got)
	}
}

func TestRelativeError(t *testing.T) {
	tests := []struct {
		got, want float64
		expected  float64
	}{
		{got: 100, want: 100, expected: 0},
		{got: 101, want: 100, expected: 0.01},
		{got: 99, want: 100, expected: 0.01},
		{got: 0, want: 0, expected: 0},
		{got: 0.5, want: 0, expected: 0.5},
	}

	for _, tt := range tests {
		got := RelativeError(tt.got, tt.want)
		if math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("RelativeError(%v, %v) = %v, want %v",
				tt.got, tt.want, got, tt.expected)
		}
	}
}

func TestAgree(t *testing.T) {
	if !Agree(1000.0001, 1000, DefaultAcceleratorTolerance) {
		t.Error("expected close checksums to agree")
	}
	if Agree(1010, 1000, DefaultAcceleratorTolerance) {
		t.Error("expected 1% difference to disagree at 1e-3")
	}
	if Agree(math.NaN(), 1000, 1) {
		t.Error("expected NaN to disagree")
	}
}
