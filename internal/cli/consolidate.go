package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Run the consolidation cascade",
		Long: "Prune short-term memory, summarize and schedule events, reinforce salient packets, " +
			"sweep mid-term, decay long-term, archive the results and, when enabled, dream.",
		Run: runConsolidate,
	}

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	report, err := c.Consolidate(cmd.Context())
	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
	if err != nil {
		exitErr("consolidate", err)
	}
}
