package store

import (
	"container/list"
	"sync"

	"github.com/rcliao/tiered-memory/internal/model"
)

// DefaultActiveCapacity bounds the working set.
const DefaultActiveCapacity = 20

// ActiveMemory is the in-process working set: a bounded queue of the most
// recent packets. Overflow silently drops the oldest entry. Nothing persists.
type ActiveMemory struct {
	mu       sync.RWMutex
	capacity int
	buf      *list.List
}

// NewActiveMemory creates a working set holding at most capacity packets.
// A non-positive capacity uses DefaultActiveCapacity.
func NewActiveMemory(capacity int) *ActiveMemory {
	if capacity <= 0 {
		capacity = DefaultActiveCapacity
	}
	return &ActiveMemory{capacity: capacity, buf: list.New()}
}

// Push appends a copy of p, evicting the oldest packet when full.
func (a *ActiveMemory) Push(p model.Packet) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf.PushBack(p.Clone())
	for a.buf.Len() > a.capacity {
		a.buf.Remove(a.buf.Front())
	}
}

// Snapshot returns the current contents, most recent last.
func (a *ActiveMemory) Snapshot() []model.Packet {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]model.Packet, 0, a.buf.Len())
	for e := a.buf.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(model.Packet).Clone())
	}
	return out
}

// Len returns the number of packets held.
func (a *ActiveMemory) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buf.Len()
}

// Capacity returns the configured bound.
func (a *ActiveMemory) Capacity() int { return a.capacity }
