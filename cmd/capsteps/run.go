package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	capsteps "github.com/yelzgniq/cap-android-steps"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sensor pipeline and the plugin call server",
	Long: `Starts the configured step sensor source, the WAL-backed pipeline feeding
the 24h step window, and the HTTP server answering plugin calls.

Examples:
  capsteps run --config ./data/config.yaml
  capsteps run --config ./data/config.yaml --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := capsteps.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	flow, err := capsteps.ConfFromConfig(cfg, capsteps.WithFlowOptions(capsteps.WithLogger(logger)))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("source", cfg.Sensor.Source).WithField("addr", cfg.Bridge.Addr).Info("starting step bridge")
	if err := flow.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("runtime exited: %w", err)
	}
	return nil
}
