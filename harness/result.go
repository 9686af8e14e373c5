// Package harness times executors over a shared dataset and records one
// result per executor.
package harness

// Result is the outcome of measuring one executor. It is created once and
// not modified afterwards.
type Result struct {
	Label          string  `json:"label"`
	Checksum       float64 `json:"checksum"`
	ElapsedMs      float64 `json:"elapsed_ms"`
	ThroughputMops float64 `json:"throughput_mops"`
	Length         int     `json:"length"`
	Iterations     int     `json:"iterations"`
	Skipped        bool    `json:"skipped,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

// skipped returns a Result recording that label produced no checksum.
func skipped(label, reason string, length, iterations int) *Result {
	return &Result{
		Label:      label,
		Length:     length,
		Iterations: iterations,
		Skipped:    true,
		Reason:     reason,
	}
}
