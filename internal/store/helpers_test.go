package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/model"
)

// fakeClock is a settable time source shared by tiers under test.
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

func packetAt(t *testing.T, text string, at time.Time, salience float64, tags ...string) model.Packet {
	t.Helper()
	p, err := model.NewPacket(model.PacketParams{Text: text, Tags: tags, Salience: &salience}, at)
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
