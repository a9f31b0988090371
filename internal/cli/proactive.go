package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "proactive",
		Short: "Show due reminders and follow-up questions",
		Long:  "Sweep expired mid-term packets, report reminders that came due, and suggest follow-ups for yesterday's calendar events.",
		Run:   runProactive,
	}

	RootCmd.AddCommand(cmd)
}

func runProactive(cmd *cobra.Command, args []string) {
	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	events, err := c.CheckProactiveEvents(cmd.Context())
	if err != nil {
		exitErr("proactive", err)
	}

	b, _ := json.MarshalIndent(events, "", "  ")
	fmt.Println(string(b))
}
