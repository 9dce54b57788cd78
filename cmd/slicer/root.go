package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-slicer/internal/config"
	"github.com/heimdex/heimdex-slicer/internal/logging"
)

// cfg and logger are populated in PersistentPreRunE.
var (
	cfg    *config.EnvConfig
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "slicer",
	Short:         "Cut video slices without re-encoding and export them as a zip archive",
	Version:       config.Version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c

		level := cfg.LogLevel()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		logger = logging.NewLogger(level)
		if src := cfg.Source(); src != "" {
			logger.Debug("loaded config file", "path", logging.SanitizePath(src))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.SetVersionTemplate(fmt.Sprintf("slicer {{.Version}} (commit %s, built %s)\n", config.GitCommit, config.BuildTime))
}
