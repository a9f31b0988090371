package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// ShortTermWindow is the rolling retention window of the short-term tier.
const ShortTermWindow = 24 * time.Hour

// ShortTermMemory is an append-only per-user log of recent packets. The
// whole collection is rewritten on every save.
type ShortTermMemory struct {
	path   string
	clock  func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	entries []model.Packet
}

// NewShortTermMemory loads the collection at path. Malformed files load as empty.
func NewShortTermMemory(path string, opts ...Option) *ShortTermMemory {
	o := buildOptions(opts)
	return &ShortTermMemory{
		path:    path,
		clock:   o.clock,
		logger:  o.logger,
		entries: loadPackets(path, o.logger),
	}
}

// Add appends p and saves synchronously. On a failed save the packet is
// dropped from memory as well, so memory and disk agree.
func (s *ShortTermMemory) Add(p model.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, p.Clone())
	if err := savePackets(s.path, s.entries); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return fmt.Errorf("short-term add: %w", err)
	}
	return nil
}

// Restore appends packets not already present (same timestamp and text)
// with one save, keeping their timestamps. It returns how many were added.
func (s *ShortTermMemory) Restore(packets []model.Packet) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	have := make(map[string]bool, len(s.entries))
	for _, p := range s.entries {
		have[packetKey(p)] = true
	}
	n := len(s.entries)
	for _, p := range packets {
		if have[packetKey(p)] {
			continue
		}
		have[packetKey(p)] = true
		s.entries = append(s.entries, p.Clone())
	}
	added := len(s.entries) - n
	if added == 0 {
		return 0, nil
	}
	if err := savePackets(s.path, s.entries); err != nil {
		s.entries = s.entries[:n]
		return 0, fmt.Errorf("short-term restore: %w", err)
	}
	return added, nil
}

// GetRecent returns packets from the last hours, in insertion order.
func (s *ShortTermMemory) GetRecent(hours int) []model.Packet {
	cutoff := model.Seconds(s.clock().Add(-time.Duration(hours) * time.Hour))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Packet
	for _, p := range s.entries {
		if p.Timestamp >= cutoff {
			out = append(out, p.Clone())
		}
	}
	return out
}

// All returns the full persisted collection, including packets outside the window.
func (s *ShortTermMemory) All() []model.Packet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePackets(s.entries)
}

// Prune removes and returns every packet older than ShortTermWindow. The
// caller decides whether pruned packets are reinforced or archived. If the
// save fails nothing is removed and the error is returned.
func (s *ShortTermMemory) Prune() ([]model.Packet, error) {
	cutoff := model.Seconds(s.clock().Add(-ShortTermWindow))

	s.mu.Lock()
	defer s.mu.Unlock()

	var old, kept []model.Packet
	for _, p := range s.entries {
		if p.Timestamp < cutoff {
			old = append(old, p)
		} else {
			kept = append(kept, p)
		}
	}
	if len(old) == 0 {
		return nil, nil
	}
	if err := savePackets(s.path, kept); err != nil {
		return nil, fmt.Errorf("short-term prune: %w", err)
	}
	s.entries = kept
	return old, nil
}

// Len returns the number of stored packets.
func (s *ShortTermMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Path returns the backing file.
func (s *ShortTermMemory) Path() string { return s.path }
