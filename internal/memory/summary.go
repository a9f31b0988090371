package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/store"
)

// GetLastEvents returns the last n packets of the Short-Term window, oldest first.
func (c *Coordinator) GetLastEvents(n int) []model.Packet {
	recent := c.short.GetRecent(int(store.ShortTermWindow.Hours()))
	if n <= 0 || n >= len(recent) {
		return recent
	}
	return recent[len(recent)-n:]
}

// Recent returns Short-Term packets from the last hours.
func (c *Coordinator) Recent(hours int) []model.Packet {
	return c.short.GetRecent(hours)
}

// ActiveSnapshot returns the working set, most recent last.
func (c *Coordinator) ActiveSnapshot() []model.Packet {
	return c.active.Snapshot()
}

// SummariseDay builds a short summary of the Short-Term packets recorded on
// date (YYYY-MM-DD, local time) without calling the generator: participants,
// tags, and the first few sentences.
func (c *Coordinator) SummariseDay(date string) string {
	var packets []model.Packet
	for _, p := range c.short.All() {
		if p.Time().Format("2006-01-02") == date {
			packets = append(packets, p)
		}
	}
	if len(packets) == 0 {
		return fmt.Sprintf("No events recorded for %s.", date)
	}

	participants := map[string]bool{}
	tags := map[string]bool{}
	for _, p := range packets {
		for _, v := range p.Participants {
			participants[v] = true
		}
		for _, v := range p.Tags {
			tags[v] = true
		}
	}

	var parts []string
	chars := 0
	full := func() bool { return len(parts) >= 3 || chars > 200 }
outer:
	for _, p := range packets {
		for _, s := range strings.Split(p.Text, ". ") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			parts = append(parts, s)
			chars += len(s)
			if full() {
				break outer
			}
		}
	}
	text := strings.Join(parts, ". ")
	if len(parts) > 0 {
		text += "..."
	}
	return fmt.Sprintf("Summary of %s: participants: %s; tags: %s. %s",
		date, joinSorted(participants), joinSorted(tags), text)
}

func joinSorted(set map[string]bool) string {
	if len(set) == 0 {
		return "none"
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
