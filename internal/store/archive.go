package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/rcliao/tiered-memory/internal/model"
)

// ErrArchiveDamaged marks a compressed stream that could not be read to the end.
var ErrArchiveDamaged = errors.New("archive damaged")

// ArchiveMemory is the terminal tier: a gzip-compressed JSON-lines log.
// Each Store call appends one gzip member; readers decode the members as a
// single stream. There is no index, so reads are full scans.
type ArchiveMemory struct {
	path   string
	clock  func() time.Time
	logger *slog.Logger

	mu sync.RWMutex
}

// NewArchiveMemory prepares the archive at path. The file is created on first Store.
func NewArchiveMemory(path string, opts ...Option) (*ArchiveMemory, error) {
	o := buildOptions(opts)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &ArchiveMemory{path: path, clock: o.clock, logger: o.logger}, nil
}

// Store appends packets to the log. On failure the file is truncated back
// to its previous length so no partial member is left behind.
func (a *ArchiveMemory) Store(packets []model.Packet) error {
	if len(packets) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("archive store: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("archive store: %w", err)
	}
	prevSize := info.Size()

	if err := writeMember(f, packets); err != nil {
		f.Truncate(prevSize)
		f.Close()
		return fmt.Errorf("archive store: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Truncate(prevSize)
		f.Close()
		return fmt.Errorf("archive store: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("archive store: close: %w", err)
	}
	return nil
}

// FetchByTags returns every archived packet whose tags include all of tags.
// An empty tag list matches everything. When the stream is damaged the
// packets read before the damage are returned along with an error wrapping
// ErrArchiveDamaged.
func (a *ArchiveMemory) FetchByTags(tags []string) ([]model.Packet, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []model.Packet
	err := a.scan(func(p model.Packet) {
		if p.HasTags(tags) {
			out = append(out, p)
		}
	})
	if err != nil {
		return out, fmt.Errorf("archive fetch: %w", err)
	}
	return out, nil
}

// All returns every archived packet.
func (a *ArchiveMemory) All() ([]model.Packet, error) {
	return a.FetchByTags(nil)
}

// PurgeOldMemories rewrites the archive without records that are both
// older than ageThresholdDays and below salienceThreshold. Records matching
// only one condition are kept. The rewrite goes through a temp file and a
// rename; if the archive cannot be read completely nothing is rewritten.
// It returns the number of records removed.
func (a *ArchiveMemory) PurgeOldMemories(ageThresholdDays int, salienceThreshold float64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := model.Seconds(a.clock().Add(-time.Duration(ageThresholdDays) * 24 * time.Hour))

	var kept []model.Packet
	removed := 0
	err := a.scan(func(p model.Packet) {
		if p.Timestamp < cutoff && p.Salience < salienceThreshold {
			removed++
			return
		}
		kept = append(kept, p)
	})
	if err != nil {
		return 0, fmt.Errorf("archive purge: read: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	if len(kept) > 0 {
		if err := writeMember(&buf, kept); err != nil {
			return 0, fmt.Errorf("archive purge: %w", err)
		}
	}
	if err := WriteFileAtomic(a.path, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("archive purge: %w", err)
	}
	return removed, nil
}

// Size returns the compressed size on disk.
func (a *ArchiveMemory) Size() int64 {
	info, err := os.Stat(a.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Path returns the archive file.
func (a *ArchiveMemory) Path() string { return a.path }

// scan decodes every record, skipping malformed lines. It returns an error
// only when the file or the compressed stream itself is unreadable; stream
// errors wrap ErrArchiveDamaged.
func (a *ArchiveMemory) scan(fn func(model.Packet)) error {
	f, err := os.Open(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveDamaged, err)
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var p model.Packet
		if err := json.Unmarshal(line, &p); err != nil {
			a.logger.Debug("archive: skipping malformed record", "err", err)
			continue
		}
		fn(p.Normalize())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveDamaged, err)
	}
	return nil
}

func writeMember(w io.Writer, packets []model.Packet) error {
	zw := gzip.NewWriter(w)
	enc := json.NewEncoder(zw)
	for _, p := range packets {
		if err := enc.Encode(p); err != nil {
			zw.Close()
			return fmt.Errorf("encode: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	return nil
}
