// Package history provides an optional write-through transcript log.
// Sessions hold their canonical state in memory; the log is an audit
// trail and survives the connection.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one logged turn.
type Entry struct {
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Log records conversation turns per session and mode.
type Log interface {
	AppendTurn(e Entry) error
	Turns(sessionID, mode string) ([]Entry, error)
	Close() error
}

type SQLiteLog struct {
	db *sql.DB
}

func NewSQLiteLog(dbPath string) (*SQLiteLog, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "kotoba.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &SQLiteLog{db: db}
	if err := l.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLog) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := l.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create turns table: %w", err)
	}

	if _, err := l.db.Exec("CREATE INDEX IF NOT EXISTS idx_turns_session_mode ON turns(session_id, mode, id)"); err != nil {
		return fmt.Errorf("create turns index: %w", err)
	}
	return nil
}

func (l *SQLiteLog) AppendTurn(e Entry) error {
	_, err := l.db.Exec(
		`INSERT INTO turns(session_id, mode, role, text, created_at) VALUES(?, ?, ?, ?, ?)`,
		e.SessionID,
		e.Mode,
		e.Role,
		e.Text,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append turn for session %s: %w", e.SessionID, err)
	}
	return nil
}

func (l *SQLiteLog) Turns(sessionID, mode string) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT session_id, mode, role, text, created_at
		 FROM turns
		 WHERE session_id = ? AND mode = ?
		 ORDER BY id ASC`,
		sessionID,
		mode,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0, 16)
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.SessionID, &e.Mode, &e.Role, &e.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse turn created_at: %w", err)
		}
		e.CreatedAt = parsed
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return entries, nil
}

func (l *SQLiteLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// NoopLog discards all entries. Used when transcript logging is off.
type NoopLog struct{}

func (NoopLog) AppendTurn(Entry) error                { return nil }
func (NoopLog) Turns(string, string) ([]Entry, error) { return nil, nil }
func (NoopLog) Close() error                          { return nil }
