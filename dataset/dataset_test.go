package dataset

import (
	"math"
	"slices"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	first := Generate(10000)
	second := Generate(10000)

	if !slices.Equal(first, second) {
		t.Error("datasets are not deterministic for the same length")
	}
}

func TestGeneratePrefixStable(t *testing.T) {
	short := Generate(100)
	long := Generate(1000)

	if !slices.Equal(short, long[:100]) {
		t.Error("shorter dataset is not a prefix of the longer one")
	}
}

func TestGenerateLengths(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{name: "empty", length: 0, want: 0},
		{name: "negative", length: -5, want: 0},
		{name: "single", length: 1, want: 1},
		{name: "odd", length: 1037, want: 1037},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.length)
			if got == nil {
				t.Fatal("Generate returned nil slice")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestGenerateOpenInterval(t *testing.T) {
	// Long enough to pass several sine peaks and troughs.
	data := Generate(200000)

	for i, v := range data {
		if v <= 0 || v >= 1 {
			t.Fatalf("data[%d] = %v, want value in (0, 1)", i, v)
		}
	}
}

func TestGenerateFormula(t *testing.T) {
	data := Generate(8)

	if data[0] != 0.5 {
		t.Errorf("data[0] = %v, want 0.5", data[0])
	}

	for i, v := range data {
		want := float32(math.Sin(float64(i)*Angle)*0.5 + 0.5)
		if v != want {
			t.Errorf("data[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestValueClamps(t *testing.T) {
	// Index nearest to the first sine peak (pi/2 / Angle).
	peak := int(math.Round(math.Pi / 2 / Angle))

	if v := Value(peak); v >= 1 {
		t.Errorf("Value(%d) = %v, want < 1", peak, v)
	}
}

func TestSum(t *testing.T) {
	if got := Sum(nil); got != 0 {
		t.Errorf("Sum(nil) = %v, want 0", got)
	}

	got := Sum([]float32{0.25, 0.5, 0.125})
	if got != 0.875 {
		t.Errorf("Sum = %v, want 0.875", got)
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize([]float32{0.5, 0.25, 0.75})

	if summary.Length != 3 {
		t.Errorf("length = %d, want 3", summary.Length)
	}
	if summary.Min != 0.25 {
		t.Errorf("min = %v, want 0.25", summary.Min)
	}
	if summary.Max != 0.75 {
		t.Errorf("max = %v, want 0.75", summary.Max)
	}
	if summary.Sum != 1.5 {
		t.Errorf("sum = %v, want 1.5", summary.Sum)
	}

	if empty := Summarize(nil); empty != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero value", empty)
	}
}
