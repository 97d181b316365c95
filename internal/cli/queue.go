package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codeflow/internal/config"
)

var queueSession string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and maintain the issue queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued issues",
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

		items, err := q.List(queueSession)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPRI\tCODE\tFILE\tLINE\tATTEMPTS\tWORKER")
		for _, it := range items {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%d\t%d\t%s\n",
				it.ID, it.Status, it.Priority, it.ErrorCode, it.FilePath,
				it.LineNumber, it.Attempts, it.WorkerID)
		}
		return w.Flush()
	},
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate queue counts",
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

		st, err := q.GetStats()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "total\t%d\n", st.Total)
		fmt.Fprintf(w, "pending\t%d\n", st.Pending)
		fmt.Fprintf(w, "processing\t%d\n", st.Processing)
		fmt.Fprintf(w, "completed\t%d\n", st.Completed)
		fmt.Fprintf(w, "failed\t%d\n", st.Failed)
		fmt.Fprintf(w, "success rate\t%.1f%%\n", st.SuccessRate*100)
		return w.Flush()
	},
}

var queueResetStaleCmd = &cobra.Command{
	Use:   "reset-stale",
	Short: "Return stuck processing items to pending",
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

		age := config.ParseDuration(cfg.Engine.Queue.StaleAfter, 30*time.Minute)
		n, err := q.ResetStale(age)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %d stale items (older than %s)\n", n, age)
		return nil
	},
}

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old completed and failed items",
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

		age := config.ParseDuration(cfg.Engine.Queue.RetainFor, 168*time.Hour)
		n, err := q.Purge(age)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d terminal items (older than %s)\n", n, age)
		return nil
	},
}

func init() {
	queueListCmd.Flags().StringVar(&queueSession, "session", "", "restrict to one session")
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueResetStaleCmd)
	queueCmd.AddCommand(queuePurgeCmd)
}
