package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rcliao/tiered-memory/internal/calendar"
	"github.com/rcliao/tiered-memory/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGenerator answers by prompt prefix. Prompts with no matching prefix
// get no reply.
type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	for prefix, reply := range g.replies {
		if strings.HasPrefix(prompt, prefix) {
			return reply, true
		}
	}
	return "", false
}

func (g *fakeGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type fakeCalendar struct {
	mu     sync.Mutex
	events map[string][]calendar.Event
	err    error
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string][]calendar.Event{}}
}

func (c *fakeCalendar) AddEvent(owner, date, start, end, title, description string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	key := owner + "|" + date
	id := fmt.Sprintf("ev-%d", len(c.events[key])+1)
	c.events[key] = append(c.events[key], calendar.Event{
		ID: id, Date: date, Start: start, End: end, Title: title, Description: description,
	})
	return id, nil
}

func (c *fakeCalendar) ListEvents(owner, date string) ([]calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return append([]calendar.Event(nil), c.events[owner+"|"+date]...), nil
}

// fakeGate asks a question only for user texts mentioning one of topics.
type fakeGate struct {
	topics []string
	seen   []CuriosityContext
}

func (g *fakeGate) MaybeAsk(_ context.Context, c CuriosityContext) (string, bool) {
	g.seen = append(g.seen, c)
	for _, t := range g.topics {
		if strings.Contains(c.UserText, t) {
			return "Oh, what was the best part of " + t + "?", true
		}
	}
	return "", false
}

type testEnv struct {
	c     *Coordinator
	clock *fakeClock
	gen   *fakeGenerator
	cal   *fakeCalendar
	root  string
}

func newTestCoordinator(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		clock: newFakeClock(),
		gen:   &fakeGenerator{replies: map[string]string{}},
		cal:   newFakeCalendar(),
		root:  t.TempDir(),
	}
	if cfg.Root == "" {
		cfg.Root = env.root
	}
	if cfg.User == "" {
		cfg.User = "alice"
	}
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(env.clock.Now),
		WithGenerator(env.gen),
		WithCalendar(env.cal),
	}
	c, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	env.c = c
	return env
}

func packetAt(t *testing.T, text string, at time.Time, salience float64) model.Packet {
	t.Helper()
	p, err := model.NewPacket(model.PacketParams{Text: text, Salience: &salience}, at)
	require.NoError(t, err)
	return p
}

func texts(packets []model.Packet) []string {
	out := make([]string, len(packets))
	for i, p := range packets {
		out[i] = p.Text
	}
	return out
}

func ptr[T any](v T) *T { return &v }
