// Package dream keeps the dream log: an append-only JSON-lines file of the
// monologues generated after each consolidation.
package dream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one logged dream.
type Entry struct {
	ID    string    `json:"id"`
	TS    time.Time `json:"ts"`
	Dream string    `json:"dream"`
}

// Log appends entries to a single file.
type Log struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewLog opens (lazily creates) the log at path.
func NewLog(path string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{path: path, logger: logger}
}

// Path returns the log file.
func (l *Log) Path() string { return l.path }

// Append writes one entry stamped with at and returns it.
func (l *Log) Append(text string, at time.Time) (Entry, error) {
	e := Entry{ID: uuid.New().String(), TS: at.UTC(), Dream: strings.TrimSpace(text)}
	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("dream append: encode: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return Entry{}, fmt.Errorf("dream append: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("dream append: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return Entry{}, fmt.Errorf("dream append: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return Entry{}, fmt.Errorf("dream append: close: %w", err)
	}
	return e, nil
}

// Last returns the most recent readable entry. Malformed lines are skipped.
func (l *Log) Last() (Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("dream last: %w", err)
	}
	defer f.Close()

	var last Entry
	found := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			l.logger.Debug("dream: skipping malformed entry", "path", l.path, "err", err)
			continue
		}
		last, found = e, true
	}
	if err := sc.Err(); err != nil {
		return Entry{}, false, fmt.Errorf("dream last: read: %w", err)
	}
	return last, found, nil
}
