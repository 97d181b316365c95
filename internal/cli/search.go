package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchFull  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over logged AI interactions",
	Long: `Search runs an FTS query over the prompts, responses, and file paths
of every logged fix attempt. The query uses SQLite FTS5 syntax, so
phrases ("line too long") and boolean operators (E501 AND app) work.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		history, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		defer history.Close()

		results, err := history.Search(strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "no matching interactions")
			return nil
		}

		for _, in := range results {
			status := "failed"
			if in.Success {
				status = "fixed"
			}
			fmt.Fprintf(out, "#%d %s %s [%s] %s via %s/%s (%.2f, %dms)\n",
				in.ID, in.CreatedAt.Format("2006-01-02 15:04"), status,
				in.ErrorCodes, in.FilePath, in.Provider, in.Model,
				in.Confidence, in.DurationMS)
			if searchFull {
				fmt.Fprintf(out, "  prompt:\n%s\n  response:\n%s\n",
					indent(in.Prompt), indent(in.Response))
			}
		}
		return nil
	},
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")
	searchCmd.Flags().BoolVar(&searchFull, "full", false, "print full prompts and responses")
}
