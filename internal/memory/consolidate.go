package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/tiered-memory/internal/calendar"
	"github.com/rcliao/tiered-memory/internal/model"
)

const (
	// ReminderPrefix marks mid-term packets that resurface as reminders.
	ReminderPrefix = "Proactive Reminder"

	reminderSalience     = 0.7
	reminderLead         = 3 * 24 * time.Hour
	dailySummarySalience = 0.6
	dailySummaryTag      = "daily_summary"
	reminderTag          = "reminder"
)

const (
	summaryPrompt = "Summarize the key events, topics, and participants from the " +
		"following daily log. Be concise.\n\n"
	eventPrompt = "Analyze this summary for future events, appointments, or " +
		"deadlines. If found, return a JSON object with 'title', 'date' " +
		"(YYYY-MM-DD), and 'time' (HH:MM). If not found, return null.\n\nSummary:\n"
	dreamPrompt = "Using the following daily summary, drift into a silent monologue " +
		"and explore thoughts, stories, or analogies that relate to the day.\n\nSummary:\n"
)

// ScheduledEvent is an event extracted from the daily summary.
type ScheduledEvent struct {
	Title      string    `json:"title"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	CalendarID string    `json:"calendar_id,omitempty"`
	RemindAt   time.Time `json:"remind_at"`
}

// ConsolidationReport describes what one consolidation run did.
type ConsolidationReport struct {
	RunID      string          `json:"run_id"`
	Pruned     int             `json:"pruned"`
	Summary    string          `json:"summary,omitempty"`
	Event      *ScheduledEvent `json:"event,omitempty"`
	Reinforced int             `json:"reinforced"`
	Archived   int             `json:"archived"`
	Expired    int             `json:"expired"`
	Demoted    int             `json:"demoted"`
	Dream      string          `json:"dream,omitempty"`
}

// Consolidate runs the promotion and demotion cascade:
//
//  1. prune Short-Term entries older than the window and summarize them;
//  2. extract at most one upcoming event from the summary and schedule it;
//  3. reinforce salient pruned packets into Long-Term and archive all of them;
//  4. sweep expired Mid-Term packets into the Archive;
//  5. decay Long-Term and archive what falls below the floor.
//
// A dream is then generated from the summary when dreams are enabled.
// Collaborator failures only skip their step. Persistence failures do not
// stop later steps; they are joined into the returned error alongside the
// report.
func (c *Coordinator) Consolidate(ctx context.Context) (*ConsolidationReport, error) {
	c.consolidateMu.Lock()
	defer c.consolidateMu.Unlock()

	report := &ConsolidationReport{RunID: uuid.NewString()}
	logger := c.logger.With("run_id", report.RunID)
	logger.Debug("memory: consolidation started")

	var errs []error

	pruned, err := c.short.Prune()
	if err != nil {
		errs = append(errs, fmt.Errorf("prune short-term: %w", err))
	}
	report.Pruned = len(pruned)

	if len(pruned) > 0 {
		summary := c.dailySummary(ctx, pruned)
		c.setLastSummary(summary)
		report.Summary = summary

		if summary != "" {
			if c.cfg.StoreDailySummary {
				if err := c.storeDailySummary(summary); err != nil {
					errs = append(errs, err)
				}
			}
			if ev, ok := c.extractEvent(ctx, summary, logger); ok {
				scheduled, err := c.scheduleEvent(ctx, ev, summary, logger)
				if err != nil {
					errs = append(errs, err)
				}
				report.Event = scheduled
			}
		}

		for _, p := range pruned {
			if p.Salience < model.PromoteSalience {
				continue
			}
			if _, err := c.long.Reinforce(p); err != nil {
				errs = append(errs, fmt.Errorf("reinforce long-term: %w", err))
				continue
			}
			report.Reinforced++
		}
		if err := c.archive.Store(pruned); err != nil {
			errs = append(errs, fmt.Errorf("archive pruned: %w", err))
		} else {
			report.Archived += len(pruned)
		}
	}

	expired, err := c.mid.Sweep(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep mid-term: %w", err))
	}
	report.Expired = len(expired)
	if err := c.archive.Store(expired); err != nil {
		errs = append(errs, fmt.Errorf("archive expired: %w", err))
	} else {
		report.Archived += len(expired)
	}

	demoted, err := c.long.Decay(model.DemoteSalience)
	if err != nil {
		errs = append(errs, fmt.Errorf("decay long-term: %w", err))
	}
	report.Demoted = len(demoted)
	if err := c.archive.Store(demoted); err != nil {
		errs = append(errs, fmt.Errorf("archive demoted: %w", err))
	} else {
		report.Archived += len(demoted)
	}

	if c.cfg.DreamsEnabled {
		text, err := c.dreamCycle(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		report.Dream = text
	}

	err = errors.Join(errs...)
	if err != nil {
		logger.Warn("memory: consolidation finished with errors", "err", err)
	}
	logger.Info("memory: consolidation finished",
		"pruned", report.Pruned,
		"reinforced", report.Reinforced,
		"archived", report.Archived,
		"expired", report.Expired,
		"demoted", report.Demoted,
		"event", report.Event != nil,
	)
	if err != nil {
		return report, fmt.Errorf("consolidate: %w", err)
	}
	return report, nil
}

// dailySummary asks the generator to summarize the pruned packets. No
// tier lock is held during the call.
func (c *Coordinator) dailySummary(ctx context.Context, packets []model.Packet) string {
	texts := make([]string, len(packets))
	for i, p := range packets {
		texts[i] = p.Text
	}
	summary, ok := c.generate(ctx, summaryPrompt+strings.Join(texts, "\n"))
	if !ok {
		return ""
	}
	return summary
}

func (c *Coordinator) storeDailySummary(summary string) error {
	salience := dailySummarySalience
	p, err := model.NewPacket(model.PacketParams{
		Text:     fmt.Sprintf("Daily summary %s: %s", c.clock().UTC().Format("2006-01-02"), summary),
		Tags:     []string{dailySummaryTag},
		Salience: &salience,
	}, c.clock())
	if err != nil {
		return fmt.Errorf("daily summary packet: %w", err)
	}
	if _, err := c.long.Reinforce(p); err != nil {
		return fmt.Errorf("reinforce daily summary: %w", err)
	}
	if err := c.archive.Store([]model.Packet{p}); err != nil {
		return fmt.Errorf("archive daily summary: %w", err)
	}
	return nil
}

type extractedEvent struct {
	Title string
	Date  string
	Time  string
}

// extractEvent asks the generator for at most one upcoming event. Anything
// other than a JSON object is treated as no event.
func (c *Coordinator) extractEvent(ctx context.Context, summary string, logger *slog.Logger) (extractedEvent, bool) {
	reply, ok := c.generate(ctx, eventPrompt+summary)
	if !ok {
		return extractedEvent{}, false
	}
	ev, ok := parseEvent(reply, c.clock())
	if !ok {
		logger.Debug("memory: no event extracted", "reply", truncate(reply, 80))
	}
	return ev, ok
}

// parseEvent decodes the generator's event reply. Missing fields default to
// "Untitled event", today's date (UTC) and "00:00".
func parseEvent(reply string, now time.Time) (extractedEvent, bool) {
	raw := stripCodeFence(reply)
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return extractedEvent{}, false
	}
	ev := extractedEvent{
		Title: stringField(fields, "title", "Untitled event"),
		Date:  stringField(fields, "date", now.UTC().Format("2006-01-02")),
		Time:  stringField(fields, "time", "00:00"),
	}
	return ev, true
}

func stringField(fields map[string]any, key, def string) string {
	if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// stripCodeFence removes one surrounding ``` fence, with or without a
// language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// scheduleEvent writes the event to the user's calendar and queues a
// reminder packet in Mid-Term that expires three days before the event.
// A calendar failure is logged and does not prevent the reminder.
func (c *Coordinator) scheduleEvent(ctx context.Context, ev extractedEvent, summary string, logger *slog.Logger) (*ScheduledEvent, error) {
	scheduled := &ScheduledEvent{Title: ev.Title, Date: ev.Date, Time: ev.Time}

	id, err := c.calendar.AddEvent(calendar.OwnerUser, ev.Date, ev.Time, ev.Time, ev.Title, summary)
	if err != nil {
		logger.Warn("memory: calendar rejected event", "title", ev.Title, "date", ev.Date, "err", err)
	} else {
		scheduled.CalendarID = id
	}

	at, err := time.ParseInLocation("2006-01-02 15:04", ev.Date+" "+ev.Time, time.Local)
	if err != nil {
		at = c.clock()
	}
	scheduled.RemindAt = at.Add(-reminderLead)

	salience := reminderSalience
	remindAt := scheduled.RemindAt
	p, err := model.NewPacket(model.PacketParams{
		Text:         fmt.Sprintf("%s: Talk to %s about upcoming event: %s", ReminderPrefix, c.cfg.HandlerName, ev.Title),
		Participants: []string{c.cfg.HandlerName},
		Tags:         []string{reminderTag},
		Salience:     &salience,
		Expiry:       &remindAt,
	}, c.clock())
	if err != nil {
		return scheduled, fmt.Errorf("reminder packet: %w", err)
	}
	if err := c.mid.Add(ctx, p, remindAt); err != nil {
		return scheduled, fmt.Errorf("queue reminder: %w", err)
	}
	logger.Info("memory: event scheduled", "title", ev.Title, "date", ev.Date, "remind_at", remindAt)
	return scheduled, nil
}

// dreamCycle narrates the retained daily summary into the dream log and
// then clears it. Without a summary it does nothing.
func (c *Coordinator) dreamCycle(ctx context.Context) (string, error) {
	summary := c.LastDailySummary()
	if summary == "" {
		return "", nil
	}
	defer c.setLastSummary("")

	text, ok := c.generate(ctx, dreamPrompt+summary+"\nMonologue:")
	if !ok {
		return "", nil
	}
	if _, err := c.dreams.Append(text, c.clock()); err != nil {
		return "", fmt.Errorf("dream log: %w", err)
	}
	return text, nil
}

// RecallLastDream returns the most recent dream.
func (c *Coordinator) RecallLastDream() (string, error) {
	e, ok, err := c.dreams.Last()
	if err != nil {
		return "", err
	}
	if !ok {
		return "No dreams recorded yet.", nil
	}
	if e.Dream == "" {
		return "No dream content.", nil
	}
	return e.Dream, nil
}
