package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the queue and interaction databases",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations to both databases",
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
		q.Close()

		history, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		history.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "databases migrated")
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate both databases",
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
		if err := q.Reset(); err != nil {
			return fmt.Errorf("reset queue: %w", err)
		}

		history, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		defer history.Close()
		if err := history.Reset(); err != nil {
			return fmt.Errorf("reset interactions: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "databases reset")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
