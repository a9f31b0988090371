package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble relevant memories for a prompt",
		Long:  "Search and score memories by salience and recency, then greedily pack them into a token budget.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("budget", "b", 4000, "Max tokens in output")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	query := strings.Join(args, " ")

	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	b, _ := json.MarshalIndent(c.Context(query, budget), "", "  ")
	fmt.Println(string(b))
}
