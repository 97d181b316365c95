package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	flagQuiet   bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "codeflow",
	Short: "codeflow — an AI lint-fixing engine",
	Long: `codeflow detects lint issues with ruff, routes them to specialist prompts,
generates fixes with configurable LLM providers, and only keeps fixes that
survive syntax, compile, and lint-delta validation.

All state is stored in ~/.codeflow/ (SQLite for the queue and interaction
history, per-session file backups for rollback).`,
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the slog logger shared by the command wiring, honoring
// the --quiet/--verbose flags.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	if flagQuiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug detail")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(specialistsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(maintainCmd)
}
