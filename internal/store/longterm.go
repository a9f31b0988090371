package store

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rcliao/tiered-memory/internal/model"
)

// LongTermMemory is the salience-ranked knowledge store. Entries are keyed
// by exact text: repeated observations raise salience instead of adding
// duplicates, and every decay pass lowers it.
type LongTermMemory struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries []model.Packet
}

// NewLongTermMemory loads the collection at path. Malformed files load as empty.
func NewLongTermMemory(path string, opts ...Option) *LongTermMemory {
	o := buildOptions(opts)
	return &LongTermMemory{
		path:    path,
		logger:  o.logger,
		entries: loadPackets(path, o.logger),
	}
}

// Reinforce raises the salience of the entry whose text equals p.Text by
// model.ReinforceStep, or stores p as a new entry. It returns the entry's
// resulting salience.
func (l *LongTermMemory) Reinforce(p model.Packet) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].Text != p.Text {
			continue
		}
		prev := l.entries[i].Salience
		l.entries[i].Salience = model.ClampSalience(prev + model.ReinforceStep)
		if err := savePackets(l.path, l.entries); err != nil {
			l.entries[i].Salience = prev
			return prev, fmt.Errorf("long-term reinforce: %w", err)
		}
		return l.entries[i].Salience, nil
	}

	l.entries = append(l.entries, p.Clone())
	if err := savePackets(l.path, l.entries); err != nil {
		l.entries = l.entries[:len(l.entries)-1]
		return 0, fmt.Errorf("long-term reinforce: %w", err)
	}
	return p.Salience, nil
}

// Restore upserts packets as they are: an entry with the same text takes the
// restored record, salience included, and anything else is appended. No
// reinforcement step is applied. It saves once.
func (l *LongTermMemory) Restore(packets []model.Packet) error {
	if len(packets) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next := clonePackets(l.entries)
	index := make(map[string]int, len(next))
	for i, e := range next {
		index[e.Text] = i
	}
	for _, p := range packets {
		if i, ok := index[p.Text]; ok {
			next[i] = p.Clone()
			continue
		}
		index[p.Text] = len(next)
		next = append(next, p.Clone())
	}

	if err := savePackets(l.path, next); err != nil {
		return fmt.Errorf("long-term restore: %w", err)
	}
	l.entries = next
	return nil
}

// Decay multiplies every salience by model.DecayFactor and removes entries
// that fall below threshold, returning them for archival. A failed save
// leaves the store untouched.
func (l *LongTermMemory) Decay(threshold float64) ([]model.Packet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]model.Packet, 0, len(l.entries))
	var demoted []model.Packet
	for _, e := range l.entries {
		e.Salience = model.ClampSalience(e.Salience * model.DecayFactor)
		if e.Salience < threshold {
			demoted = append(demoted, e)
		} else {
			kept = append(kept, e)
		}
	}

	if err := savePackets(l.path, kept); err != nil {
		return nil, fmt.Errorf("long-term decay: %w", err)
	}
	l.entries = kept
	return demoted, nil
}

// Query returns entries whose text contains text, case-insensitively.
func (l *LongTermMemory) Query(text string) []model.Packet {
	needle := strings.ToLower(text)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []model.Packet
	for _, e := range l.entries {
		if strings.Contains(strings.ToLower(e.Text), needle) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// All returns every stored entry.
func (l *LongTermMemory) All() []model.Packet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return clonePackets(l.entries)
}

// Len returns the number of stored entries.
func (l *LongTermMemory) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Path returns the backing file.
func (l *LongTermMemory) Path() string { return l.path }
