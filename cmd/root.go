package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/esrecorder/esrecorder/recorder/config"
	"github.com/esrecorder/esrecorder/recorder/logging"
)

var (
	logLevel   string // Log verbosity level
	logFile    string // Rotated log file; empty disables
	configPath string // Path to esrecorder.yaml

	logCloser io.Closer
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "esrecorder",
	Short: "Record engine-simulation sweeps and export them as game assets",
	Long: "esrecorder drives a pool of engine-simulation instances across an RPM x throttle grid, " +
		"records one sample and one dyno point per grid point, and exports the recorded curve " +
		"as a .jbeam torque table and a .sfxBlend2D sound blend.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		closer, err := logging.Setup(logLevel, logFile, os.Stderr)
		if err != nil {
			logrus.Fatalf("Invalid logging setup: %v", err)
		}
		logCloser = closer
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config and fails the command on a parse error.
// Validation is left to the caller so flag overrides apply first.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// mustValidate fails the command on the first invalid field.
func mustValidate(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", logging.DefaultFile(), "Log file, rotated on start (empty disables)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Configuration file")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(soundsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}
