// Package calendar keeps small personal calendars, one JSON file per owner.
//
// There is no collision detection, recurrence, or timezone handling: dates
// are "YYYY-MM-DD" and times "HH:MM", interpreted in local time.
package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/tiered-memory/internal/store"
)

// Calendar owners.
const (
	OwnerUser      = "user"
	OwnerAssistant = "assistant"
)

// ErrUnknownOwner is returned for an owner other than OwnerUser or OwnerAssistant.
var ErrUnknownOwner = errors.New("calendar: unknown owner")

// Event is one calendar entry.
type Event struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

// StartTime parses the event's date and start in loc.
func (e Event) StartTime(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", e.Date+" "+e.Start, loc)
}

// Calendar stores events under dir as <owner>.json.
type Calendar struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a calendar rooted at dir.
func New(dir string, logger *slog.Logger) (*Calendar, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("calendar: init directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calendar{dir: dir, logger: logger}, nil
}

func (c *Calendar) pathFor(owner string) (string, error) {
	switch owner {
	case OwnerUser, OwnerAssistant:
		return filepath.Join(c.dir, owner+".json"), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownOwner, owner)
	}
}

// load reads one owner's events. Malformed files load as empty.
func (c *Calendar) load(owner string) ([]Event, error) {
	path, err := c.pathFor(owner)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: read %s: %w", path, err)
	}
	var events []Event
	if err := json.Unmarshal(b, &events); err != nil {
		c.logger.Warn("calendar: malformed file, treating as empty", "path", path, "err", err)
		return nil, nil
	}
	return events, nil
}

// AddEvent records an event for owner and returns its id. Events are kept
// sorted by date and start time.
func (c *Calendar) AddEvent(owner, date, start, end, title, description string) (string, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", fmt.Errorf("calendar: invalid date %q: %w", date, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	events, err := c.load(owner)
	if err != nil {
		return "", err
	}
	ev := Event{
		ID:          ulid.Make().String(),
		Date:        date,
		Start:       start,
		End:         end,
		Title:       title,
		Description: description,
	}
	events = append(events, ev)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Start < events[j].Start
	})

	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", fmt.Errorf("calendar: encode: %w", err)
	}
	path, _ := c.pathFor(owner)
	if err := store.WriteFileAtomic(path, b); err != nil {
		return "", fmt.Errorf("calendar: save: %w", err)
	}
	return ev.ID, nil
}

// ListEvents returns owner's events on date ("YYYY-MM-DD").
func (c *Calendar) ListEvents(owner, date string) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	events, err := c.load(owner)
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range events {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

// NextEvent returns the earliest event starting at or after now. An empty
// owner searches both calendars. The returned event has Owner set.
func (c *Calendar) NextEvent(owner string, now time.Time) (Event, bool, error) {
	owners := []string{OwnerAssistant, OwnerUser}
	if owner != "" {
		owners = []string{owner}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var best Event
	var bestAt time.Time
	found := false
	for _, o := range owners {
		events, err := c.load(o)
		if err != nil {
			return Event{}, false, err
		}
		for _, e := range events {
			at, err := e.StartTime(now.Location())
			if err != nil || at.Before(now) {
				continue
			}
			if !found || at.Before(bestAt) {
				best, bestAt, found = e, at, true
				best.Owner = o
			}
		}
	}
	return best, found, nil
}
