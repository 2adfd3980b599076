package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/reviewgate/internal/config"
	"github.com/ericfisherdev/reviewgate/internal/output"
)

// Package-level shared dependencies, initialized before each command runs.
var (
	ui  *output.UI
	cfg *config.Config

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "reviewgate",
	Short: "Automated pull request reviews with a human approval gate",
	Long: `reviewgate polls GitHub for pull requests awaiting your review, asks a
decision agent for a verdict and either posts it, queues it for your approval
or escalates the pull request to you.

Running reviewgate with no subcommand is the same as "reviewgate serve".`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initDeps(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute is the main entry point called from main.go.
func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./reviewgate.yaml or ~/.config/reviewgate/reviewgate.yaml)")
	rootCmd.PersistentFlags().BoolP("dry-run", "n", false, "Run the agent and log verdicts without acting on them")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output and debug logging")
	addServeFlags(rootCmd)
}

// initDeps loads configuration and installs the default logger. Flags the
// user set override the file and the environment.
func initDeps(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	cfg = loaded

	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = cfg.DryRun

	slog.SetDefault(newLogger(os.Stderr, cfg.Log, verbose))
	return nil
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays free for tables and the MCP transport.
func newLogger(w io.Writer, lc config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
