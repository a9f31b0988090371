package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	summaryCmd := &cobra.Command{
		Use:   "summary [YYYY-MM-DD]",
		Short: "Summarize one day of short-term memory",
		Long:  "Summarize the short-term packets recorded on a local date (default today) without calling a model.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runSummary,
	}

	dreamCmd := &cobra.Command{
		Use:   "dream",
		Short: "Recall the most recent dream",
		Run:   runDream,
	}

	RootCmd.AddCommand(summaryCmd, dreamCmd)
}

func runSummary(cmd *cobra.Command, args []string) {
	date := time.Now().Format("2006-01-02")
	if len(args) > 0 {
		if _, err := time.Parse("2006-01-02", args[0]); err != nil {
			exitErr("summary", fmt.Errorf("invalid date %q", args[0]))
		}
		date = args[0]
	}

	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	b, _ := json.Marshal(map[string]string{"date": date, "summary": c.SummariseDay(date)})
	fmt.Println(string(b))
}

func runDream(cmd *cobra.Command, args []string) {
	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	text, err := c.RecallLastDream()
	if err != nil {
		exitErr("dream", err)
	}

	b, _ := json.Marshal(map[string]string{"dream": text})
	fmt.Println(string(b))
}
