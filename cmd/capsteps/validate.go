package main

import (
	"fmt"

	"github.com/spf13/cobra"

	capsteps "github.com/yelzgniq/cap-android-steps"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a config file without starting the bridge",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := capsteps.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", okColor.Sprint("config ok:"), cfgPath)
		fmt.Fprintf(out, "  %s %s\n", keyColor.Sprint("source:"), cfg.Sensor.Source)
		fmt.Fprintf(out, "  %s %s\n", keyColor.Sprint("permission:"), cfg.Permission.Mode)
		fmt.Fprintf(out, "  %s %s\n", keyColor.Sprint("bridge:"), cfg.Bridge.Addr)
		fmt.Fprintf(out, "  %s %s\n", keyColor.Sprint("metrics:"), cfg.Metrics.Addr)
		if cfg.Timescale.ConnString != "" {
			fmt.Fprintf(out, "  %s %s\n", keyColor.Sprint("archive:"), cfg.Timescale.Table)
		}
		return nil
	},
}
