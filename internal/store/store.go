// Package store persists the note collection, sync settings, and a sync
// activity log in a local SQLite database.
//
// Per the app's durability contract, read failures degrade to empty state
// and write failures are logged rather than surfaced to the UI; only opening
// the database can hard-fail.
package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/polaco8525/postit/internal/config"
	"github.com/polaco8525/postit/internal/note"
)

// Settings keys.
const (
	KeyLastSyncAt     = "last_sync_at"
	KeyAutoSync       = "auto_sync"
	KeyLastSyncedHash = "last_synced_hash"
)

// Store wraps the local SQLite database.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// LogEntry is one row of the sync activity log.
type LogEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OpenDefault opens (or creates) the database at the default config path.
func OpenDefault(log *zap.Logger) (*Store, error) {
	if _, err := config.EnsureDir(); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	path, err := config.StorePath()
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}

	return Open(path, log)
}

// Open opens (or creates) the database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		color TEXT NOT NULL,
		width REAL NOT NULL,
		height REAL NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		z_index INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// LoadNotes returns every stored note. Failures degrade to an empty
// collection and are logged, never propagated.
func (s *Store) LoadNotes() []note.Note {
	rows, err := s.db.Query(
		`SELECT id, text, color, width, height, x, y, created_at, updated_at, z_index FROM notes`)
	if err != nil {
		s.log.Warn("load notes failed, starting empty", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		var n note.Note
		var color string
		if err := rows.Scan(
			&n.ID, &n.Text, &color,
			&n.Size.Width, &n.Size.Height,
			&n.Position.X, &n.Position.Y,
			&n.CreatedAt, &n.UpdatedAt, &n.ZIndex,
		); err != nil {
			s.log.Warn("skipping unreadable note row", zap.Error(err))
			continue
		}
		n.Color = note.Color(color)
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		s.log.Warn("note scan interrupted", zap.Error(err))
	}

	return notes
}

// SaveNotes replaces the stored collection with the given notes in one
// transaction. Failures are logged and dropped.
func (s *Store) SaveNotes(notes []note.Note) {
	tx, err := s.db.Begin()
	if err != nil {
		s.log.Warn("save notes: begin failed", zap.Error(err))
		return
	}

	if _, err := tx.Exec(`DELETE FROM notes`); err != nil {
		s.log.Warn("save notes: clear failed", zap.Error(err))
		tx.Rollback()
		return
	}

	stmt, err := tx.Prepare(
		`INSERT INTO notes (id, text, color, width, height, x, y, created_at, updated_at, z_index)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		s.log.Warn("save notes: prepare failed", zap.Error(err))
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, n := range notes {
		if _, err := stmt.Exec(
			n.ID, n.Text, string(n.Color),
			n.Size.Width, n.Size.Height,
			n.Position.X, n.Position.Y,
			n.CreatedAt, n.UpdatedAt, n.ZIndex,
		); err != nil {
			s.log.Warn("save notes: insert failed", zap.String("id", n.ID), zap.Error(err))
			tx.Rollback()
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Warn("save notes: commit failed", zap.Error(err))
	}
}

// Setting returns the raw value for key.
func (s *Store) Setting(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			s.log.Warn("read setting failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

// SetSetting stores the raw value for key.
func (s *Store) SetSetting(key, value string) {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		s.log.Warn("write setting failed", zap.String("key", key), zap.Error(err))
	}
}

// LastSyncAt returns the persisted last-sync timestamp (epoch ms).
func (s *Store) LastSyncAt() (int64, bool) {
	v, ok := s.Setting(KeyLastSyncAt)
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// SetLastSyncAt persists the last-sync timestamp (epoch ms).
func (s *Store) SetLastSyncAt(ts int64) {
	s.SetSetting(KeyLastSyncAt, strconv.FormatInt(ts, 10))
}

// AutoSync returns the persisted auto-sync flag, or fallback when unset.
func (s *Store) AutoSync(fallback bool) bool {
	v, ok := s.Setting(KeyAutoSync)
	if !ok {
		return fallback
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return enabled
}

// SetAutoSync persists the auto-sync flag.
func (s *Store) SetAutoSync(enabled bool) {
	s.SetSetting(KeyAutoSync, strconv.FormatBool(enabled))
}

// LastSyncedHash returns the content hash of the collection at last sync.
func (s *Store) LastSyncedHash() string {
	v, _ := s.Setting(KeyLastSyncedHash)
	return v
}

// SetLastSyncedHash persists the content hash of the synced collection.
func (s *Store) SetLastSyncedHash(hash string) {
	s.SetSetting(KeyLastSyncedHash, hash)
}

// AddLogEntry appends a sync activity record.
func (s *Store) AddLogEntry(action, message string) {
	_, err := s.db.Exec(
		`INSERT INTO sync_log (action, message, created_at) VALUES (?, ?, ?)`,
		action, message, time.Now().UnixMilli())
	if err != nil {
		s.log.Warn("append sync log failed", zap.Error(err))
	}
}

// RecentLog returns up to limit most recent sync activity records.
func (s *Store) RecentLog(limit int) []LogEntry {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, action, message, created_at FROM sync_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		s.log.Warn("read sync log failed", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var ts int64
		if err := rows.Scan(&e.ID, &e.Action, &e.Message, &ts); err != nil {
			continue
		}
		e.Timestamp = time.UnixMilli(ts)
		entries = append(entries, e)
	}

	return entries
}
