package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/weiihann/logibench/accel"
)

// Devices writes a markdown table of accelerator probe outcomes.
func Devices(w io.Writer, host string, probes []accel.Probe) error {
	fmt.Fprintln(w, "## Devices")
	fmt.Fprintln(w)

	if host != "" {
		fmt.Fprintf(w, "Host: %s\n", host)
		fmt.Fprintln(w)
	}

	if len(probes) == 0 {
		fmt.Fprintln(w, "No accelerator backends configured.")
		return nil
	}

	fmt.Fprintln(w, "| Backend | Device | Kind | Memory | Compute Units | Status |")
	fmt.Fprintln(w, "|---------|--------|------|--------|---------------|--------|")

	for _, p := range probes {
		if p.Err != nil {
			fmt.Fprintf(w, "| %s | - | - | - | - | %s |\n", p.Backend, p.Err)
			continue
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s | %d | ok |\n",
			p.Backend,
			p.Info.Name,
			p.Info.Kind,
			formatBytes(p.Info.MemoryBytes),
			p.Info.ComputeUnits,
		)
	}

	return nil
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
