// Package report formats benchmark results into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/weiihann/logibench/checksum"
	"github.com/weiihann/logibench/harness"
)

// Tolerance holds the relative checksum bounds used for agreement.
type Tolerance struct {
	// CPU applies to every executor other than the accelerator.
	CPU float64
	// Accelerator applies to the accelerator executor.
	Accelerator float64
}

// Options adds context printed above the results table.
type Options struct {
	Host              string
	Dataset           string
	Workers           int
	Lanes             string
	AcceleratorStatus string
	Tolerance         Tolerance
}

// Row is one completed result compared against the reference.
type Row struct {
	Label         string
	RelativeError float64
	Tolerance     float64
	Agrees        bool
}

// Comparison is the checksum agreement of a set of results.
type Comparison struct {
	Reference string
	Rows      []Row
	AllAgree  bool
}

const (
	scalarLabel      = "scalar"
	acceleratorLabel = "accelerator"
)

// reference picks the result every other one is compared against: the scalar
// run when it completed, else the first completed CPU run, else the first
// completed run of any kind.
func reference(results []harness.Result) *harness.Result {
	var firstCPU, first *harness.Result

	for i := range results {
		r := &results[i]
		if r.Skipped {
			continue
		}

		if r.Label == scalarLabel {
			return r
		}
		if firstCPU == nil && r.Label != acceleratorLabel {
			firstCPU = r
		}
		if first == nil {
			first = r
		}
	}

	if firstCPU != nil {
		return firstCPU
	}

	return first
}

// Compare checks every completed result against the reference result.
// Skipped results take no part. The accelerator tolerance applies whenever
// either side of a comparison is the accelerator.
func Compare(results []harness.Result, tol Tolerance) Comparison {
	c := Comparison{AllAgree: true}

	ref := reference(results)
	if ref == nil {
		return c
	}

	c.Reference = ref.Label

	for _, r := range results {
		if r.Skipped {
			continue
		}

		bound := tol.CPU
		if r.Label == acceleratorLabel || ref.Label == acceleratorLabel {
			bound = tol.Accelerator
		}

		row := Row{
			Label:         r.Label,
			RelativeError: checksum.RelativeError(r.Checksum, ref.Checksum),
			Tolerance:     bound,
			Agrees:        checksum.Agree(r.Checksum, ref.Checksum, bound),
		}

		if !row.Agrees {
			c.AllAgree = false
		}

		c.Rows = append(c.Rows, row)
	}

	return c
}

// Generate writes a markdown comparison table for the given results.
func Generate(w io.Writer, results []harness.Result, opts Options) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	cmp := Compare(results, opts.Tolerance)
	if cmp.Reference == "" {
		return fmt.Errorf("no completed results to report")
	}

	slowestMs := findSlowest(results)

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	if opts.Host != "" {
		fmt.Fprintf(w, "Host: %s\n", opts.Host)
	}
	if opts.Dataset != "" {
		fmt.Fprintf(w, "Dataset: %s\n", opts.Dataset)
	}
	if opts.Workers > 0 {
		fmt.Fprintf(w, "Workers: %d\n", opts.Workers)
	}
	if opts.Lanes != "" {
		fmt.Fprintf(w, "Lanes: %s\n", opts.Lanes)
	}
	if opts.AcceleratorStatus != "" {
		fmt.Fprintln(w, opts.AcceleratorStatus)
	}

	fmt.Fprintln(w)

	if cmp.AllAgree {
		fmt.Fprintf(w, "Checksums: **all agree** (reference: %s)\n", cmp.Reference)
	} else {
		fmt.Fprintf(w, "Checksums: **MISMATCH** (reference: %s)\n", cmp.Reference)

		for _, row := range cmp.Rows {
			if !row.Agrees {
				fmt.Fprintf(w, "  - %s: relative error %.3e exceeds %.3e\n",
					row.Label, row.RelativeError, row.Tolerance)
			}
		}
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Executor | Checksum | Rel. Error | Elapsed "+
		"| Throughput | Speedup |")
	fmt.Fprintln(w, "|----------|----------|------------|---------"+
		"|------------|---------|")

	errs := make(map[string]float64, len(cmp.Rows))
	for _, row := range cmp.Rows {
		errs[row.Label] = row.RelativeError
	}

	for _, r := range results {
		if r.Skipped {
			continue
		}

		speedup := 1.0
		if slowestMs > 0 && r.ElapsedMs > 0 {
			speedup = slowestMs / r.ElapsedMs
		}

		fmt.Fprintf(w, "| %s | %.6f | %.2e | %s | %s | %.2fx |\n",
			r.Label,
			r.Checksum,
			errs[r.Label],
			formatMs(r.ElapsedMs),
			formatMops(r.ThroughputMops),
			speedup,
		)
	}

	skippedHeader := false
	for _, r := range results {
		if !r.Skipped {
			continue
		}

		if !skippedHeader {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Skipped:")
			skippedHeader = true
		}

		fmt.Fprintf(w, "  - %s: %s\n", r.Label, r.Reason)
	}

	return nil
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results []harness.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

func findSlowest(results []harness.Result) float64 {
	slowest := 0.0
	for _, r := range results {
		if !r.Skipped && r.ElapsedMs > slowest {
			slowest = r.ElapsedMs
		}
	}

	return slowest
}

func formatMs(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.1fms", ms)
	}

	return fmt.Sprintf("%.2fs", ms/1000)
}

func formatMops(mops float64) string {
	switch {
	case mops == 0 || math.IsInf(mops, 0) || math.IsNaN(mops):
		return "-"
	case mops >= 1000:
		return fmt.Sprintf("%.2f Gop/s", mops/1000)
	default:
		return fmt.Sprintf("%.1f Mop/s", mops)
	}
}
