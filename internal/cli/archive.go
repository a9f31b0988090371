package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/store"
)

func init() {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Query or purge the compressed archive",
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "List archived packets carrying all given tags",
		Run:   runArchiveFetch,
	}
	fetchCmd.Flags().StringP("tags", "t", "", "Comma-separated tags (empty matches everything)")

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove archived packets that are both old and low-salience",
		Run:   runArchivePurge,
	}
	purgeCmd.Flags().Int("days", 30, "Age threshold in days")
	purgeCmd.Flags().Float64("salience", 0.3, "Salience threshold")

	archiveCmd.AddCommand(fetchCmd, purgeCmd)
	RootCmd.AddCommand(archiveCmd)
}

func runArchiveFetch(cmd *cobra.Command, args []string) {
	tags, _ := cmd.Flags().GetString("tags")

	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	packets, err := c.FetchArchiveByTags(splitList(tags))
	if err != nil && !errors.Is(err, store.ErrArchiveDamaged) {
		exitErr("archive fetch", err)
	}
	if len(packets) == 0 {
		fmt.Println("[]")
	} else {
		b, _ := json.MarshalIndent(packets, "", "  ")
		fmt.Println(string(b))
	}
	if err != nil {
		exitErr("archive fetch", err)
	}
}

func runArchivePurge(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")
	salience, _ := cmd.Flags().GetFloat64("salience")

	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	removed, err := c.PurgeArchive(days, salience)
	if err != nil {
		exitErr("archive purge", err)
	}

	fmt.Printf(`{"ok":true,"removed":%d}`+"\n", removed)
}
