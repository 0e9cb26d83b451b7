// Package journal persists one row per quiz session to SQLite so operators
// can audit what was answered, how, and whether the submission landed.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the sessions table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	quiz_url TEXT NOT NULL,
	question TEXT,
	answer TEXT,
	confidence REAL,
	source TEXT,
	state TEXT NOT NULL,
	http_status INTEGER,
	attempts INTEGER,
	elapsed_ms INTEGER,
	error TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_ts ON sessions(timestamp);
CREATE INDEX IF NOT EXISTS idx_sessions_sid ON sessions(session_id);
`

// Entry is one journalled quiz session.
type Entry struct {
	SessionID  string
	QuizURL    string
	Question   string
	Answer     string
	Confidence float64
	Source     string
	State      string // submitted | failed | expired
	HTTPStatus int
	Attempts   int
	Elapsed    time.Duration
	Error      string
}

// Store persists session entries to SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path and applies the
// schema. Parent directories are created as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir %s: %w", dir, err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// SQLite writes are serialized; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the sessions table if it doesn't exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("journal: init schema: %w", err)
	}
	return nil
}

// Record inserts one session entry.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, quiz_url, question, answer, confidence, source,
			state, http_status, attempts, elapsed_ms, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.QuizURL, e.Question, e.Answer, e.Confidence, e.Source,
		e.State, e.HTTPStatus, e.Attempts, e.Elapsed.Milliseconds(), e.Error,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns the latest n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, quiz_url, question, answer, confidence, source,
			state, http_status, attempts, elapsed_ms, error
		FROM sessions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var elapsedMs int64
		if err := rows.Scan(&e.SessionID, &e.QuizURL, &e.Question, &e.Answer,
			&e.Confidence, &e.Source, &e.State, &e.HTTPStatus, &e.Attempts,
			&elapsedMs, &e.Error); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
