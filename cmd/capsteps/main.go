package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "capsteps",
	Short: "Step counter plugin bridge",
	Long: `Runs the step counter plugin bridge and talks to a running one:

- run the sensor pipeline and serve plugin calls over HTTP
- validate a configuration file
- query steps, raw sensor values and permission state
- answer runtime permission prompts as the host shell
- follow the Prometheus counters of a running bridge`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", errorColor.Sprint("ERROR:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(rawCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(permissionCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides log.level")
	rootCmd.PersistentFlags().String("config", "./data/config.yaml", "Path to the bridge configuration file")
	rootCmd.PersistentFlags().String("addr", "http://localhost:8080", "Base URL of a running bridge")
}
