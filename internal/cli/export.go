package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every tier as JSON",
		Long:  "Export every tier of the selected user as one JSON document. The active tier is per-process and usually empty.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	exp, err := c.Export(cmd.Context())
	if exp == nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(exp, "", "  ")
	fmt.Println(string(b))
	if err != nil {
		// Partial archive: the document above is incomplete.
		exitErr("export", err)
	}
}
