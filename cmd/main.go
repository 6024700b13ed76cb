package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/allpedroza/karaoke/internal/config"
	"github.com/spf13/cobra"
)

// logger is the program-wide structured logger. Usable before initLogger.
var logger = slog.Default()

// initLogger configures the shared logger and installs it as the default so
// the stdlib log package routes through the same handler.
func initLogger(debug bool, w io.Writer) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// openLog points the logger at cfg.LogFile, or stderr when it is empty.
// Interactive commands call it so log lines don't tear the terminal UI.
func openLog(cfg config.Config) (func(), error) {
	if cfg.LogFile == "" {
		initLogger(cfg.Debug, os.Stderr)
		return func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	initLogger(cfg.Debug, f)
	return func() { f.Close() }, nil
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:           "karaoke",
		Short:         "Real-time singing analysis with a synchronized melody lane",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogger(cfg.Debug, os.Stderr)
			return cfg.Validate()
		},
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newSingCmd(&cfg),
		newAnalyzeCmd(&cfg),
		newMelodyCmd(&cfg),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
