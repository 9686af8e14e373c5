package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/weiihann/logibench/accel"
	"github.com/weiihann/logibench/internal/hostinfo"
	"github.com/weiihann/logibench/report"
)

func newDevicesCmd(global *globalFlags) *cobra.Command {
	var backends []string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Probe accelerator backends and report what they find",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("backends") {
				cfg.Accelerator.Backends = backends
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}

			list, err := accel.NewBackends(cfg.Accelerator.Backends, cfg.Accelerator.BlockSize, cfg.MaxMemoryBytes())
			if err != nil {
				return err
			}

			probes := accel.ProbeAll(list...)
			for _, p := range probes {
				if p.Err != nil {
					logger.DebugContext(cmd.Context(), "probe failed",
						slog.String("backend", p.Backend),
						slog.String("error", p.Err.Error()),
					)
				}
			}

			if err := report.Devices(cmd.OutOrStdout(), hostinfo.Detect().Summary(), probes); err != nil {
				return fmt.Errorf("write devices: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&backends, "backends", nil,
		"Accelerator backends to probe (e.g. cuda,host)")

	return cmd
}
