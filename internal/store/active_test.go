package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveMemoryBound(t *testing.T) {
	a := NewActiveMemory(3)
	now := time.Now()
	for i := 1; i <= 4; i++ {
		a.Push(packetAt(t, fmt.Sprintf("p%d", i), now, 0.5))
	}

	snap := a.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"p2", "p3", "p4"}, texts(snap), "oldest entry evicted, newest last")
}

func TestActiveMemoryDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultActiveCapacity, NewActiveMemory(0).Capacity())
}

func TestActiveMemorySnapshotIsCopy(t *testing.T) {
	a := NewActiveMemory(5)
	a.Push(packetAt(t, "hello", time.Now(), 0.5, "x"))

	snap := a.Snapshot()
	snap[0].Tags[0] = "mutated"
	snap[0].Text = "mutated"

	again := a.Snapshot()
	assert.Equal(t, "hello", again[0].Text)
	assert.Equal(t, []string{"x"}, again[0].Tags)
}
