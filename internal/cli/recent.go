package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent short-term packets",
		Run:   runRecent,
	}

	cmd.Flags().Int("hours", 24, "Look back this many hours")
	cmd.Flags().IntP("last", "l", 0, "Only the last N packets of the 24h window")

	RootCmd.AddCommand(cmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	hours, _ := cmd.Flags().GetInt("hours")
	last, _ := cmd.Flags().GetInt("last")

	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	packets := c.Recent(hours)
	if last > 0 {
		packets = c.GetLastEvents(last)
	}
	if packets == nil {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(packets, "", "  ")
	fmt.Println(string(b))
}
