// Package main implements taskdogd, the command-line entry point for
// the task scheduling core: task CRUD and lifecycle commands, the
// optimize command that runs one of the nine scheduling strategies,
// and a serve command that keeps the task core running and prints
// every broadcast event to stdout.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taskdog/internal/logging"
)

var (
	verbose   bool
	workspace string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "taskdogd",
	Short: "taskdogd - personal task scheduling core",
	Long: `taskdogd manages tasks and their dependencies, and runs
optimization strategies that assign each task a planned window within
the available daily capacity.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		} else if abs, err := filepath.Abs(ws); err == nil {
			ws = abs
		}
		workspace = ws

		if err := logging.Initialize(workspace); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(taskCmd, optimizeCmd, serveCmd)
	taskCmd.AddCommand(
		taskAddCmd, taskListCmd, taskStartCmd, taskCompleteCmd, taskCancelCmd,
		taskReopenCmd, taskArchiveCmd, taskRestoreCmd, taskRemoveCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
