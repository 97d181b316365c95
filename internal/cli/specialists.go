package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codeflow/internal/specialist"
)

var specialistsCmd = &cobra.Command{
	Use:   "specialists",
	Short: "List the registered fix specialists",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := specialist.NewManager()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tEXPERTISE\tCODES\tTEMPLATE")
		for _, p := range m.Snapshot() {
			s := m.ByType(p.Type)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				p.Type, p.Expertise, strings.Join(s.SupportedCodes, ","), s.Template)
		}
		return w.Flush()
	},
}
