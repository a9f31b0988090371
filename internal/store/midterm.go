package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rcliao/tiered-memory/internal/model"
)

// sweepBatch caps the number of ids bound into one DELETE statement.
const sweepBatch = 500

// MidTermMemory holds packets with an explicit expiry in a SQLite table
// indexed on expiry, so sweeps are range deletes rather than full scans.
type MidTermMemory struct {
	db     *sql.DB
	path   string
	clock  func() time.Time
	logger *slog.Logger

	// mu serializes writers; sweep is select+delete and must not interleave.
	mu      sync.Mutex
	entropy *rand.Rand
	closed  bool
}

// NewMidTermMemory opens or creates the mid-term database at dbPath. A file
// that SQLite reports as corrupt or not a database is renamed to
// dbPath.corrupt-<unix seconds> and a fresh database takes its place.
func NewMidTermMemory(dbPath string, opts ...Option) (*MidTermMemory, error) {
	o := buildOptions(opts)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	m := &MidTermMemory{
		path:    dbPath,
		clock:   o.clock,
		logger:  o.logger,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	db, err := openMidTermDB(dbPath)
	if isCorrupt(err) {
		moved := fmt.Sprintf("%s.corrupt-%d", dbPath, m.clock().Unix())
		m.logger.Warn("mid-term: database unreadable, starting empty", "path", dbPath, "moved_to", moved, "err", err)
		if err := quarantine(dbPath, moved); err != nil {
			return nil, fmt.Errorf("move corrupt db: %w", err)
		}
		db, err = openMidTermDB(dbPath)
	}
	if err != nil {
		return nil, err
	}
	m.db = db
	return m, nil
}

func openMidTermDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// isCorrupt reports whether err means the file holds no usable database.
func isCorrupt(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
			return true
		}
	}
	return strings.Contains(err.Error(), "not a database")
}

// quarantine moves the database and its WAL side files out of the way.
func quarantine(dbPath, moved string) error {
	if err := os.Rename(dbPath, moved); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Rename(dbPath+suffix, moved+suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (m *MidTermMemory) newID() string {
	return ulid.MustNew(ulid.Timestamp(m.clock()), m.entropy).String()
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mid_term (
		id          TEXT PRIMARY KEY,
		data        TEXT NOT NULL,
		expiry      REAL NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mid_term_expiry ON mid_term(expiry);
	`
	_, err := db.Exec(schema)
	return err
}

// Add inserts p with the given expiry, which may differ from p.Expiry.
func (m *MidTermMemory) Add(ctx context.Context, p model.Packet, expiry time.Time) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("mid-term add: encode: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mid-term add: %w", ErrClosed)
	}

	_, err = m.db.ExecContext(ctx,
		`INSERT INTO mid_term (id, data, expiry, created_at) VALUES (?, ?, ?, ?)`,
		m.newID(), string(data), model.Seconds(expiry), m.clock().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mid-term add: %w", err)
	}
	return nil
}

// Restore inserts packets under their own expiry, skipping packets without
// one and rows already present with the same text, timestamp and expiry.
// It runs in one transaction and returns how many rows were inserted.
func (m *MidTermMemory) Restore(ctx context.Context, packets []model.Packet) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("mid-term restore: %w", ErrClosed)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mid-term restore: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, p := range packets {
		if p.Expiry == nil {
			m.logger.Warn("mid-term: skipping restored packet without expiry", "text", p.Text)
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return 0, fmt.Errorf("mid-term restore: encode: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO mid_term (id, data, expiry, created_at)
			SELECT ?, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM mid_term
				WHERE ABS(expiry - ?) < 1e-6
				  AND json_extract(data, '$.text') = ?
				  AND ABS(json_extract(data, '$.timestamp') - ?) < 1e-6
			)`,
			m.newID(), string(data), *p.Expiry, m.clock().UTC().Format(time.RFC3339),
			*p.Expiry, p.Text, p.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("mid-term restore: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mid-term restore commit: %w", err)
	}
	return inserted, nil
}

// FetchActive returns every entry not yet expired, soonest expiry first,
// without removing anything.
func (m *MidTermMemory) FetchActive(ctx context.Context) ([]model.Packet, error) {
	now := model.Seconds(m.clock())

	rows, err := m.db.QueryContext(ctx,
		`SELECT id, data FROM mid_term WHERE expiry > ? ORDER BY expiry`, now)
	if err != nil {
		return nil, fmt.Errorf("mid-term fetch: %w", err)
	}
	defer rows.Close()

	var packets []model.Packet
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("mid-term fetch: %w", err)
		}
		if p, ok := m.decode(id, data); ok {
			packets = append(packets, p)
		}
	}
	return packets, rows.Err()
}

// Sweep removes and returns every entry whose expiry is at or before now.
// Select and delete run in one transaction under the writer lock, so a
// swept record is never handed to two callers.
func (m *MidTermMemory) Sweep(ctx context.Context) ([]model.Packet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("mid-term sweep: %w", ErrClosed)
	}

	now := model.Seconds(m.clock())

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mid-term sweep: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, data FROM mid_term WHERE expiry <= ? ORDER BY expiry`, now)
	if err != nil {
		return nil, fmt.Errorf("mid-term sweep: %w", err)
	}

	var ids []string
	var packets []model.Packet
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("mid-term sweep: %w", err)
		}
		ids = append(ids, id)
		// Undecodable rows are still deleted; they can never be returned.
		if p, ok := m.decode(id, data); ok {
			packets = append(packets, p)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("mid-term sweep: %w", err)
	}
	rows.Close()

	for start := 0; start < len(ids); start += sweepBatch {
		end := min(start+sweepBatch, len(ids))
		batch := ids[start:end]
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM mid_term WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return nil, fmt.Errorf("mid-term sweep delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mid-term sweep commit: %w", err)
	}
	return packets, nil
}

// Count returns the number of stored entries, expired or not.
func (m *MidTermMemory) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mid_term`).Scan(&n); err != nil {
		return 0, fmt.Errorf("mid-term count: %w", err)
	}
	return n, nil
}

// Path returns the database file.
func (m *MidTermMemory) Path() string { return m.path }

// Close closes the database.
func (m *MidTermMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

func (m *MidTermMemory) decode(id, data string) (model.Packet, bool) {
	var p model.Packet
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		m.logger.Warn("mid-term: skipping malformed row", "id", id, "err", err)
		return model.Packet{}, false
	}
	return p.Normalize(), true
}
