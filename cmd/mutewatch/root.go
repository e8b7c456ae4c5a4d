// Package main provides the CLI entrypoint for mutewatch.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mutewatch/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose     bool
		configPath  string
		catalogPath string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mutewatch",
	Short: "Mute the speakers when media starts playing through them",
	Long: `mutewatch watches the system audio output. When the output is audible
and a known media player or browser is active, it mutes the output and
offers to cancel the mute. Cancelling restores the volume and pauses
enforcement for a while.

Running mutewatch without a subcommand starts the watchdog with the
interactive terminal UI. Press Q at any time to stop it.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// One-shot commands stay quiet unless asked
		setupLogger(os.Stderr, slog.LevelWarn)

		var err error
		cfg, err = config.Load(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalOpts.catalogPath != "" {
			cfg.Catalog.Path = globalOpts.catalogPath
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: <user config dir>/mutewatch/mutewatch.toml, or $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&globalOpts.catalogPath, "catalog", "",
		"Path to a media catalog YAML file (default: built-in catalog)")
}

// setupLogger configures the global slog logger. --verbose always wins.
func setupLogger(w io.Writer, level slog.Level) {
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(w, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// openLogFile opens the log file used while the terminal UI owns stderr.
func openLogFile() (*os.File, string, error) {
	path, err := config.LogPath()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get log path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, "", fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open log file: %w", err)
	}
	return f, path, nil
}
