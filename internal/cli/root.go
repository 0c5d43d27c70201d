// Package cli implements the command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aidanlsb/gfxcheck/internal/config"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

var (
	// Global flags
	settingsPath string
	logLevel     string
	logFormat    string

	// Resolved values
	settings *config.Settings
	logger   *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gfxcheck",
	Short: "gfxcheck - validate graphics record files",
	Long: `gfxcheck validates trees of image directories against the record files
(config.xml) that map each source image to a destination in the game catalog.

Runs are resumable: progress is checkpointed as work completes, and an
interrupted run continues where it stopped the next time 'gfxcheck run' starts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(logLevel, logFormat, os.Stderr)

		// Skip settings for commands that don't need them
		switch cmd.Name() {
		case "init", "completion", "help", "version":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
			return nil
		}

		loaded, err := config.Load(settingsPath)
		if err != nil {
			if errors.Is(err, config.ErrNotFound) {
				return reportPreRun(ErrSettingsNotFound, err, "Run 'gfxcheck init' to create a settings file")
			}
			return reportPreRun(ErrSettingsInvalid, err, "")
		}
		settings = loaded
		if settings.UI.Accent != "" {
			ui.ConfigureTheme(settings.UI.Accent)
		}
		logger.Debug("loaded settings", "path", settings.Path())
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !jsonOutput {
		fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "", "Path to the settings file (default ./gfxcheck.toml, then the user config directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for script use)")
	rootCmd.PersistentFlags().AddFlagSet(loggingFlags())
}

// loggingFlags returns the flags that configure operational logging.
func loggingFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("logging", pflag.ContinueOnError)
	fs.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	fs.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	return fs
}

// newLogger creates a logger writing to w. It does not set the global
// logger.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// reportPreRun emits a JSON error when requested and always returns err, so
// that the command does not run without its settings.
func reportPreRun(code string, err error, suggestion string) error {
	if jsonOutput {
		outputErrorFromErr(code, err, suggestion)
	}
	return err
}

// getSettings returns the loaded settings.
func getSettings() *config.Settings {
	return settings
}

// getLogger returns the configured logger.
func getLogger() *slog.Logger {
	if logger == nil {
		logger = newLogger(logLevel, logFormat, os.Stderr)
	}
	return logger
}

// commandContext returns the command's context, or a background context
// when the command is invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
