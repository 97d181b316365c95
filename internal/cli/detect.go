package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [path]",
	Short: "Detect lint issues without fixing them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		issues := newDetector(cfg, logger).Detect(path)

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(issues)
		}

		if len(issues) == 0 {
			fmt.Fprintln(out, "no issues detected")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tLINE\tCODE\tMESSAGE")
		for _, i := range issues {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", i.FilePath, i.LineNumber, i.ErrorCode, i.Message)
		}
		w.Flush()
		fmt.Fprintf(out, "\n%d issues detected\n", len(issues))
		return nil
	},
}

func init() {
	detectCmd.Flags().String("format", "table", "Output format: table or json")
}
