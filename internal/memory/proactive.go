package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/tiered-memory/internal/calendar"
)

// ProactiveEvents are the reminders that came due and the follow-up
// questions about yesterday's events.
type ProactiveEvents struct {
	Reminders []string `json:"reminders"`
	Followups []string `json:"followups"`
}

// CheckProactiveEvents sweeps Mid-Term and returns the text of every swept
// reminder, plus one follow-up question per calendar event the user had
// yesterday (UTC). Every swept packet is archived.
func (c *Coordinator) CheckProactiveEvents(ctx context.Context) (ProactiveEvents, error) {
	out := ProactiveEvents{Reminders: []string{}, Followups: []string{}}

	expired, err := c.mid.Sweep(ctx)
	if err != nil {
		return out, fmt.Errorf("proactive: sweep mid-term: %w", err)
	}
	for _, p := range expired {
		if strings.HasPrefix(p.Text, ReminderPrefix) {
			out.Reminders = append(out.Reminders, p.Text)
		}
	}
	var archiveErr error
	if err := c.archive.Store(expired); err != nil {
		archiveErr = fmt.Errorf("proactive: archive swept: %w", err)
	}

	yesterday := c.clock().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	events, err := c.calendar.ListEvents(calendar.OwnerUser, yesterday)
	if err != nil {
		c.logger.Warn("memory: calendar unavailable for follow-ups", "date", yesterday, "err", err)
		events = nil
	}
	for _, e := range events {
		out.Followups = append(out.Followups, c.followup(ctx, e))
	}
	return out, archiveErr
}

func (c *Coordinator) followup(ctx context.Context, e calendar.Event) string {
	title := strings.TrimSpace(e.Title)
	if c.gate != nil {
		subject := title
		if subject == "" {
			subject = "an event"
		}
		c.mu.Lock()
		cc := CuriosityContext{
			UserText:               fmt.Sprintf("I went to %s yesterday", subject),
			PersonaName:            c.cfg.PersonaName,
			Now:                    c.clock(),
			LastProbe:              c.lastProbe,
			ProbesSoFar:            c.probesSoFar,
			TurnsSinceUserQuestion: 2,
		}
		c.mu.Unlock()

		if q, ok := c.gate.MaybeAsk(ctx, cc); ok && strings.TrimSpace(q) != "" {
			c.mu.Lock()
			c.lastProbe = cc.Now
			c.probesSoFar++
			c.mu.Unlock()
			return strings.TrimSpace(q)
		}
	}
	if title == "" {
		title = "that event"
	}
	return fmt.Sprintf("How did %s go yesterday?", title)
}
