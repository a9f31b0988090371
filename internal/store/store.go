// Package store implements the five memory tiers: active, short-term,
// mid-term, long-term and archive. Each tier is an independent, concurrency
// safe object owning its own persistence for one user namespace.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// Tier names double as directory names under the storage root.
const (
	TierActive    = "active"
	TierShortTerm = "short_term"
	TierMidTerm   = "mid_term"
	TierLongTerm  = "long_term"
	TierArchive   = "archive"
)

// ErrClosed is returned by operations on a closed tier.
var ErrClosed = errors.New("store: tier is closed")

// Option configures a tier.
type Option func(*options)

type options struct {
	clock  func() time.Time
	logger *slog.Logger
}

// WithClock overrides the time source used for windows and expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger used to report skipped or corrupt records.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TierPath returns the on-disk location of a tier for one user.
func TierPath(root, tier, user string) string {
	switch tier {
	case TierMidTerm:
		return filepath.Join(root, tier, user+".db")
	case TierArchive:
		return filepath.Join(root, tier, user+".jsonl.gz")
	default:
		return filepath.Join(root, tier, user+".json")
	}
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("atomic rename %s: %w", path, err)
	}
	return nil
}

// savePackets rewrites the whole collection at path.
func savePackets(path string, packets []model.Packet) error {
	if packets == nil {
		packets = []model.Packet{}
	}
	b, err := json.MarshalIndent(packets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return WriteFileAtomic(path, b)
}

// loadPackets reads a JSON packet list. A missing file is an empty
// collection; an unreadable or malformed one is logged and also treated as
// empty so the tier starts fresh instead of failing.
func loadPackets(path string, logger *slog.Logger) []model.Packet {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		logger.Warn("store: unreadable tier file, starting empty", "path", path, "err", err)
		return nil
	}
	var packets []model.Packet
	if err := json.Unmarshal(b, &packets); err != nil {
		logger.Warn("store: malformed tier file, starting empty", "path", path, "err", err)
		return nil
	}
	for i := range packets {
		packets[i] = packets[i].Normalize()
	}
	return packets
}

func clonePackets(in []model.Packet) []model.Packet {
	out := make([]model.Packet, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
