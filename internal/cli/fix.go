package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codeflow/internal/orchestrator"
	"github.com/lucasnoah/codeflow/internal/prompt"
)

var (
	fixTypes    []string
	fixMax      int
	fixWorkers  int
	fixProvider string
	fixModel    string
	fixStrategy string
	fixDryRun   bool
	fixBackups  bool
)

var fixCmd = &cobra.Command{
	Use:   "fix [path]",
	Short: "Detect lint issues and fix them with AI",
	Long: `Fix runs the full workflow against a path: detect issues with ruff,
queue them, and work through the queue with the configured fix strategy.
Fixes that fail validation are discarded; the file is never left broken.

The command exits non-zero only on infrastructure errors (bad config,
unreachable database). Fix failures are reported in the summary instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := prompt.InstallBuiltinTemplates(); err != nil {
			logger.Warn("could not install builtin templates", "error", err)
		}

		q, err := openQueue(cfg, logger)
		if err != nil {
			return err
		}
		defer q.Close()

		history, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		defer history.Close()

		workdir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		deps, err := newStrategyDeps(cfg, workdir, logger)
		if err != nil {
			return err
		}

		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		backups := *cfg.Engine.Workflow.CreateBackups
		if cmd.Flags().Changed("backups") {
			backups = fixBackups
		}
		strategyName := cfg.Engine.Workflow.Strategy
		if fixStrategy != "" {
			strategyName = fixStrategy
		}

		wf := orchestrator.New(cfg, newDetector(cfg, logger), q,
			deps.Specialists, deps, history, logger)
		if !flagQuiet {
			wf.SetProgress(cmd.ErrOrStderr())
		}

		report := wf.Run(cmd.Context(), orchestrator.Options{
			Path:          path,
			FixTypes:      fixTypes,
			MaxFixes:      fixMax,
			Workers:       fixWorkers,
			Provider:      fixProvider,
			Model:         fixModel,
			Strategy:      strategyName,
			DryRun:        fixDryRun,
			CreateBackups: backups,
		})

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Fprintf(out, "session %s: %s (%.1fs)\n",
			report.SessionID, report.Summary, report.Duration.Seconds())
		for _, f := range report.Fixed {
			fmt.Fprintf(out, "  fixed %s [%s] via %s/%s (confidence %.2f)\n",
				f.FilePath, f.ErrorCodes, f.Provider, f.Model, f.Confidence)
		}
		for _, f := range report.FailedIssues {
			fmt.Fprintf(out, "  failed %s:%d %s: %s\n",
				f.FilePath, f.Line, f.ErrorCode, f.Reason)
		}
		if report.Error != "" {
			fmt.Fprintf(out, "  error: %s\n", report.Error)
		}
		return nil
	},
}

func init() {
	fixCmd.Flags().StringSliceVar(&fixTypes, "fix-types", nil, "error-code prefixes to fix (e.g. E501,F401)")
	fixCmd.Flags().IntVar(&fixMax, "max-fixes", 0, "maximum issues to process (default from config)")
	fixCmd.Flags().IntVar(&fixWorkers, "workers", 0, "concurrent fix workers (default from config)")
	fixCmd.Flags().StringVar(&fixProvider, "provider", "", "override the LLM provider")
	fixCmd.Flags().StringVar(&fixModel, "model", "", "override the LLM model")
	fixCmd.Flags().StringVar(&fixStrategy, "strategy", "", "fix strategy: basic or validation")
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "detect and queue but don't fix anything")
	fixCmd.Flags().BoolVar(&fixBackups, "backups", true, "snapshot files before persisting fixes")
	fixCmd.Flags().String("format", "text", "Output format: text or json")
}
