package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Record a memory packet",
		Long: "Record a memory packet. Text can be a positional arg or piped via stdin. " +
			"Packets with a TTL also go to mid-term memory; salience >= 0.8 also goes to long-term memory.",
		Run: runAdd,
	}

	cmd.Flags().StringP("participants", "p", "", "Comma-separated participants")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().Float64P("salience", "s", model.DefaultSalience, "Importance in [0,1]")
	cmd.Flags().String("ttl", "", "Expire from mid-term memory after this long (e.g. 7d, 24h)")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	participants, _ := cmd.Flags().GetString("participants")
	tags, _ := cmd.Flags().GetString("tags")
	salience, _ := cmd.Flags().GetFloat64("salience")
	ttl, _ := cmd.Flags().GetString("ttl")

	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		exitErr("add", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	params := model.PacketParams{
		Text:         text,
		Participants: splitList(participants),
		Tags:         splitList(tags),
		Salience:     &salience,
	}
	if ttl != "" {
		d, err := model.ParseTTL(ttl)
		if err != nil {
			exitErr("ttl", err)
		}
		params.TTL = d
	}

	c, err := openCoordinator()
	if err != nil {
		exitErr("open memory", err)
	}
	defer c.Close()

	p, err := c.AddEvent(cmd.Context(), params)
	if err != nil {
		exitErr("add", err)
	}

	b, _ := json.Marshal(p)
	fmt.Println(string(b))
}
