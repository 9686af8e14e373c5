package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/weiihann/logibench/config"
	"github.com/weiihann/logibench/harness"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(append(args,
		"--config", filepath.Join(t.TempDir(), "none.yaml"),
		"--log-level", "error",
	))

	err := root.ExecuteContext(context.Background())

	return stdout.String(), err
}

func TestRunReport(t *testing.T) {
	out, err := execute(t, "run",
		"--length", "2000",
		"--iterations", "20",
		"--warmup", "1",
		"--workers", "2",
		"--backends", "host",
		"--strict",
	)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	for _, want := range []string{"all agree", "| scalar |", "| threaded |", "| vectorized |", "| accelerator |", "accelerator: using"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestRunJSONWithoutAccelerator(t *testing.T) {
	out, err := execute(t, "run",
		"--length", "1000",
		"--iterations", "5",
		"--lane-width", "8",
		"--no-accelerator",
		"--json",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var results []harness.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.Label == "accelerator" {
			t.Error("accelerator ran with --no-accelerator")
		}
	}
}

func TestRunAbsentAccelerator(t *testing.T) {
	out, err := execute(t, "run",
		"--length", "500",
		"--iterations", "5",
		"--backends", "cuda",
		"--executors", "scalar,accelerator",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(out, "| scalar |") {
		t.Errorf("scalar row missing\n%s", out)
	}

	// Without a CUDA driver the accelerator is reported as skipped. With one,
	// it gets a row.
	if !strings.Contains(out, "accelerator: skipped") && !strings.Contains(out, "| accelerator |") {
		t.Errorf("accelerator neither skipped nor run\n%s", out)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--length", "0")
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}

	_, err = execute(t, "run", "--executors", "scalar,abacus")
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestDevices(t *testing.T) {
	out, err := execute(t, "devices", "--backends", "host")
	if err != nil {
		t.Fatalf("devices failed: %v", err)
	}

	if !strings.Contains(out, "| host |") || !strings.Contains(out, "ok") {
		t.Errorf("host device missing\n%s", out)
	}
}
