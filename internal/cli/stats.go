package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codeflow/internal/analytics"
)

var statsSince string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fix analytics from the interaction history",
	Long: `Stats aggregates the interaction history: success rates per error
code and per specialist, latency percentiles per model, and daily
session throughput.`,
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

		codes, err := analytics.QueryCodeStats(history, statsSince)
		if err != nil {
			return err
		}
		models, err := analytics.QueryModelDurations(history, statsSince)
		if err != nil {
			return err
		}
		agents, err := analytics.QueryAgentStats(history, statsSince)
		if err != nil {
			return err
		}
		throughput, err := analytics.QuerySessionThroughput(history, statsSince)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"codes":      codes,
				"models":     models,
				"agents":     agents,
				"throughput": throughput,
			})
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

		fmt.Fprintln(w, "ERROR CODES")
		fmt.Fprintln(w, "CODE\tATTEMPTS\tSUCCESS\tAVG CONF")
		for _, c := range codes {
			fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.2f\n", c.Code, c.Attempts, c.SuccessRate, c.AvgConf)
		}

		fmt.Fprintln(w, "\nMODELS")
		fmt.Fprintln(w, "PROVIDER\tMODEL\tCOUNT\tSUCCESS\tAVG MS\tP50\tP95")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.1f%%\t%.1f\t%.1f\t%.1f\n",
				m.Provider, m.Model, m.Count, m.SuccessRate, m.Avg, m.P50, m.P95)
		}

		fmt.Fprintln(w, "\nSPECIALISTS")
		fmt.Fprintln(w, "AGENT\tATTEMPTS\tSUCCESS\tAVG CONF")
		for _, a := range agents {
			fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.2f\n", a.AgentType, a.Attempts, a.SuccessRate, a.AvgConf)
		}

		fmt.Fprintln(w, "\nTHROUGHPUT")
		fmt.Fprintln(w, "DAY\tSESSIONS\tPROCESSED\tCOMPLETED\tFAILED\tFIXES/MIN")
		for _, t := range throughput {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f\n",
				t.Period, t.Sessions, t.Processed, t.Completed, t.Failed, t.FixesPerMin)
		}
		return w.Flush()
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsSince, "since", "", "only include rows at or after this timestamp (e.g. 2026-08-01)")
	statsCmd.Flags().String("format", "text", "Output format: text or json")
}
