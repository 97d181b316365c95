package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codeflow/internal/config"
	"github.com/lucasnoah/codeflow/internal/queue"
)

var maintainOnce bool

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run queue maintenance (stale-claim reset and retention purge)",
	Long: `Maintain resets queue items stuck in processing (crashed workers) and
purges old completed and failed items. By default it runs on the cron
schedule from the config and blocks until interrupted; --once performs a
single pass and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		q, err := openQueue(cfg, logger)
		if err != nil {
			return err
		}
		defer q.Close()

		staleAfter := config.ParseDuration(cfg.Engine.Queue.StaleAfter, 30*time.Minute)
		retainFor := config.ParseDuration(cfg.Engine.Queue.RetainFor, 168*time.Hour)
		m := queue.NewMaintainer(q, staleAfter, retainFor, logger)

		if maintainOnce {
			m.RunOnce()
			fmt.Fprintln(cmd.OutOrStdout(), "maintenance pass complete")
			return nil
		}

		spec := cfg.Engine.Queue.MaintainCron
		if err := m.Start(spec); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "maintenance running on schedule %q, ctrl-c to stop\n", spec)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-cmd.Context().Done():
		}
		m.Stop()
		return nil
	},
}

func init() {
	maintainCmd.Flags().BoolVar(&maintainOnce, "once", false, "run a single maintenance pass and exit")
}
