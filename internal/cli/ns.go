package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/store"
)

func init() {
	nsCmd := &cobra.Command{
		Use:   "ns",
		Short: "User namespace management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List user namespaces with stored data",
		Run:   runNSList,
	}

	nsCmd.AddCommand(listCmd)
	RootCmd.AddCommand(nsCmd)
}

func runNSList(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}

	users, err := store.ListNamespaces(cfg.Root)
	if err != nil {
		exitErr("list namespaces", err)
	}

	b, _ := json.MarshalIndent(users, "", "  ")
	fmt.Println(string(b))
}
