package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/calendar"
	"github.com/rcliao/tiered-memory/internal/memory"
)

func init() {
	calCmd := &cobra.Command{
		Use:   "calendar",
		Short: "Personal calendar of the user and the assistant",
	}

	addCmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add an event",
		Args:  cobra.ExactArgs(1),
		Run:   runCalendarAdd,
	}
	addCmd.Flags().String("owner", calendar.OwnerUser, "Calendar owner: user or assistant")
	addCmd.Flags().String("date", "", "Date YYYY-MM-DD (required)")
	addCmd.Flags().String("start", "00:00", "Start time HH:MM")
	addCmd.Flags().String("end", "", "End time HH:MM (default: start)")
	addCmd.Flags().String("desc", "", "Description")
	addCmd.MarkFlagRequired("date")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events on a date",
		Run:   runCalendarList,
	}
	listCmd.Flags().String("owner", calendar.OwnerUser, "Calendar owner: user or assistant")
	listCmd.Flags().String("date", "", "Date YYYY-MM-DD (default: today)")

	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next upcoming event",
		Run:   runCalendarNext,
	}
	nextCmd.Flags().String("owner", "", "Calendar owner (default: both)")

	calCmd.AddCommand(addCmd, listCmd, nextCmd)
	RootCmd.AddCommand(calCmd)
}

func openCalendar() *calendar.Calendar {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	cal, err := calendar.New(memory.CalendarDir(cfg.Root, cfg.User), slog.Default())
	if err != nil {
		exitErr("open calendar", err)
	}
	return cal
}

func runCalendarAdd(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	date, _ := cmd.Flags().GetString("date")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	desc, _ := cmd.Flags().GetString("desc")
	if end == "" {
		end = start
	}

	id, err := openCalendar().AddEvent(owner, date, start, end, args[0], desc)
	if err != nil {
		exitErr("calendar add", err)
	}

	fmt.Printf(`{"ok":true,"id":%q}`+"\n", id)
}

func runCalendarList(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	events, err := openCalendar().ListEvents(owner, date)
	if err != nil {
		exitErr("calendar list", err)
	}
	if len(events) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(events, "", "  ")
	fmt.Println(string(b))
}

func runCalendarNext(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	ev, ok, err := openCalendar().NextEvent(owner, time.Now())
	if err != nil {
		exitErr("calendar next", err)
	}
	if !ok {
		fmt.Println("null")
		return
	}

	b, _ := json.MarshalIndent(ev, "", "  ")
	fmt.Println(string(b))
}
