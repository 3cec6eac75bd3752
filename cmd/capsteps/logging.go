package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	capsteps "github.com/yelzgniq/cap-android-steps"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	keyColor   = color.New(color.FgCyan)
)

// configureLogger builds the logger from the log section; --log-level wins
// over log.level.
func configureLogger(cmd *cobra.Command, cfg *capsteps.Config) (*logrus.Logger, error) {
	logger := cfg.Logger()

	levelStr, _ := cmd.Flags().GetString("log-level")
	if levelStr == "" {
		return logger, nil
	}
	switch levelStr {
	case "debug", "info", "warn", "error":
		level, _ := logrus.ParseLevel(levelStr)
		logger.SetLevel(level)
		return logger, nil
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}
}
