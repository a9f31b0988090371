// Package memory coordinates the five memory tiers for one user namespace.
//
// The Coordinator owns the write path (fan-out to Active, Short-Term and,
// conditionally, Mid-Term and Long-Term), the consolidation cascade, search,
// and the proactive-event check. Text generation, the personal calendar and
// curiosity gating are external collaborators supplied through options.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rcliao/tiered-memory/internal/calendar"
	"github.com/rcliao/tiered-memory/internal/dream"
	"github.com/rcliao/tiered-memory/internal/store"
)

// Defaults applied by New when a Config field is left empty.
const (
	DefaultHandlerName = "Handler"
	DefaultPersonaName = "Assistant"
)

// Generator maps a prompt to an optional reply. ok=false means the backend
// was unavailable or had nothing to say; it never fails loudly.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, bool)
}

// Calendar is the personal calendar consumed by event scheduling and
// follow-up generation.
type Calendar interface {
	AddEvent(owner, date, start, end, title, description string) (string, error)
	ListEvents(owner, date string) ([]calendar.Event, error)
}

// CuriosityContext is what the curiosity gate sees when deciding whether to
// ask a follow-up question.
type CuriosityContext struct {
	UserText               string
	PersonaName            string
	Now                    time.Time
	LastProbe              time.Time
	ProbesSoFar            int
	TurnsSinceUserQuestion int
}

// CuriosityGate decides whether to ask a follow-up question. ok=false means
// the gate declined.
type CuriosityGate interface {
	MaybeAsk(ctx context.Context, c CuriosityContext) (string, bool)
}

// Config is the explicit configuration of one Coordinator.
type Config struct {
	Root              string
	User              string
	ActiveCapacity    int
	HandlerName       string
	PersonaName       string
	StoreDailySummary bool
	DreamsEnabled     bool
}

// DefaultConfig returns a Config with dreams enabled and default names.
func DefaultConfig(root, user string) Config {
	return Config{
		Root:           root,
		User:           user,
		ActiveCapacity: store.DefaultActiveCapacity,
		HandlerName:    DefaultHandlerName,
		PersonaName:    DefaultPersonaName,
		DreamsEnabled:  true,
	}
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	clock     func() time.Time
	generator Generator
	calendar  Calendar
	gate      CuriosityGate
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source for every tier and the coordinator.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithGenerator sets the text-generation collaborator.
func WithGenerator(g Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithCalendar sets the personal calendar. Without it a file-backed
// calendar under <root>/calendar/<user> is used.
func WithCalendar(c Calendar) Option {
	return func(o *options) { o.calendar = c }
}

// WithCuriosityGate sets the follow-up question gate. Without it every
// follow-up uses the fallback template.
func WithCuriosityGate(g CuriosityGate) Option {
	return func(o *options) { o.gate = g }
}

// Coordinator owns one instance of each tier for a single user. It is safe
// for concurrent use; at most one Coordinator should mutate a given user's
// files at a time.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger
	clock  func() time.Time

	active  *store.ActiveMemory
	short   *store.ShortTermMemory
	mid     *store.MidTermMemory
	long    *store.LongTermMemory
	archive *store.ArchiveMemory
	dreams  *dream.Log

	generator Generator
	calendar  Calendar
	gate      CuriosityGate

	// consolidateMu serializes consolidation runs.
	consolidateMu sync.Mutex

	mu          sync.Mutex
	lastSummary string
	lastProbe   time.Time
	probesSoFar int
}

// New opens every tier for cfg.User under cfg.Root.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	if cfg.Root == "" {
		return nil, errors.New("memory: root is required")
	}
	if err := validateUser(cfg.User); err != nil {
		return nil, err
	}
	if cfg.ActiveCapacity <= 0 {
		cfg.ActiveCapacity = store.DefaultActiveCapacity
	}
	if cfg.HandlerName == "" {
		cfg.HandlerName = DefaultHandlerName
	}
	if cfg.PersonaName == "" {
		cfg.PersonaName = DefaultPersonaName
	}

	o := options{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("user", cfg.User)
	tierOpts := []store.Option{store.WithClock(o.clock), store.WithLogger(logger)}

	mid, err := store.NewMidTermMemory(store.TierPath(cfg.Root, store.TierMidTerm, cfg.User), tierOpts...)
	if err != nil {
		return nil, fmt.Errorf("memory: open mid-term: %w", err)
	}
	archive, err := store.NewArchiveMemory(store.TierPath(cfg.Root, store.TierArchive, cfg.User), tierOpts...)
	if err != nil {
		mid.Close()
		return nil, fmt.Errorf("memory: open archive: %w", err)
	}

	cal := o.calendar
	if cal == nil {
		fc, err := calendar.New(CalendarDir(cfg.Root, cfg.User), logger)
		if err != nil {
			mid.Close()
			return nil, fmt.Errorf("memory: open calendar: %w", err)
		}
		cal = fc
	}

	return &Coordinator{
		cfg:       cfg,
		logger:    logger,
		clock:     o.clock,
		active:    store.NewActiveMemory(cfg.ActiveCapacity),
		short:     store.NewShortTermMemory(store.TierPath(cfg.Root, store.TierShortTerm, cfg.User), tierOpts...),
		mid:       mid,
		long:      store.NewLongTermMemory(store.TierPath(cfg.Root, store.TierLongTerm, cfg.User), tierOpts...),
		archive:   archive,
		dreams:    dream.NewLog(filepath.Join(cfg.Root, "dreams", cfg.User+".jsonl"), logger),
		generator: o.generator,
		calendar:  cal,
		gate:      o.gate,
	}, nil
}

// CalendarDir is where the default file-backed calendar keeps a user's events.
func CalendarDir(root, user string) string {
	return filepath.Join(root, "calendar", user)
}

func validateUser(user string) error {
	if user == "" {
		return errors.New("memory: user is required")
	}
	if user == "." || user == ".." || strings.ContainsAny(user, `/\`) {
		return fmt.Errorf("memory: invalid user id %q", user)
	}
	return nil
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// Close releases the mid-term database.
func (c *Coordinator) Close() error {
	return c.mid.Close()
}

// LastDailySummary returns the summary retained from the most recent
// consolidation, or "" once it has been consumed by the dream cycle.
func (c *Coordinator) LastDailySummary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSummary
}

func (c *Coordinator) setLastSummary(s string) {
	c.mu.Lock()
	c.lastSummary = s
	c.mu.Unlock()
}

func (c *Coordinator) generate(ctx context.Context, prompt string) (string, bool) {
	if c.generator == nil {
		return "", false
	}
	text, ok := c.generator.Generate(ctx, prompt)
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}
