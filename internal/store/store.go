// Package store provides a SQLite-backed research session store. A session
// groups the runs started from one initial query; every run's transcript is
// persisted so sessions survive restarts and can be listed or resumed.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Session is one research session's metadata row.
type Session struct {
	// ID is the session's unique identifier.
	ID string
	// InitialQuery is the query that started the session.
	InitialQuery string
	// TotalQueries counts the runs recorded under this session.
	TotalQueries int
	// CreatedAt is when the session was created.
	CreatedAt time.Time
	// LastUpdated is when a run was last recorded.
	LastUpdated time.Time
}

// TranscriptEntry is one persisted transcript message.
type TranscriptEntry struct {
	// Speaker is the agent name, or "user" for seed tasks.
	Speaker string
	// Text is the message content.
	Text string
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// SessionStore persists research sessions and their transcripts.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Create starts a new session for the initial query and returns its ID.
	Create(ctx context.Context, initialQuery string) (string, error)
	// Get returns one session's metadata.
	Get(ctx context.Context, sessionID string) (*Session, error)
	// List returns all sessions, most recently updated first.
	List(ctx context.Context) ([]Session, error)
	// AppendRun records one run's transcript under the session and bumps
	// its query count and last-updated timestamp.
	AppendRun(ctx context.Context, sessionID string, entries []TranscriptEntry) error
	// Transcript returns the session's full persisted transcript,
	// oldest-first.
	Transcript(ctx context.Context, sessionID string) ([]TranscriptEntry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a SessionStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the session database.
// It resolves to ~/.deepresearch/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".deepresearch")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT    PRIMARY KEY,
    initial_query TEXT    NOT NULL,
    total_queries INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL,  -- Unix timestamp (seconds)
    last_updated  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS transcript_entries (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT    NOT NULL REFERENCES sessions(id),
    speaker    TEXT    NOT NULL,
    text       TEXT    NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcript_session_created
    ON transcript_entries (session_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// newSessionID returns a random 128-bit hex identifier.
func newSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("store: session id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Create starts a new session for the initial query.
func (s *SQLiteStore) Create(ctx context.Context, initialQuery string) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	now := time.Now().Unix()
	const q = `INSERT INTO sessions (id, initial_query, total_queries, created_at, last_updated) VALUES (?, ?, 0, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, initialQuery, now, now); err != nil {
		return "", fmt.Errorf("store: create session: %w", err)
	}
	return id, nil
}

// Get returns one session's metadata.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	const q = `SELECT id, initial_query, total_queries, created_at, last_updated FROM sessions WHERE id = ?`
	var sess Session
	var created, updated int64
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&sess.ID, &sess.InitialQuery, &sess.TotalQueries, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: session %q not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	sess.CreatedAt = time.Unix(created, 0)
	sess.LastUpdated = time.Unix(updated, 0)
	return &sess, nil
}

// List returns all sessions, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Session, error) {
	const q = `SELECT id, initial_query, total_queries, created_at, last_updated FROM sessions ORDER BY last_updated DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var created, updated int64
		if err := rows.Scan(&sess.ID, &sess.InitialQuery, &sess.TotalQueries, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		sess.CreatedAt = time.Unix(created, 0)
		sess.LastUpdated = time.Unix(updated, 0)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return sessions, nil
}

// AppendRun records one run's transcript and bumps the session counters.
// The entries and the counter update commit atomically.
func (s *SQLiteStore) AppendRun(ctx context.Context, sessionID string, entries []TranscriptEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: append run: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().Unix()
	const insert = `INSERT INTO transcript_entries (session_id, speaker, text, created_at) VALUES (?, ?, ?, ?)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insert, sessionID, e.Speaker, e.Text, now); err != nil {
			return fmt.Errorf("store: append entry: %w", err)
		}
	}

	const bump = `UPDATE sessions SET total_queries = total_queries + 1, last_updated = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, bump, now, sessionID)
	if err != nil {
		return fmt.Errorf("store: bump session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: session %q not found", sessionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append run commit: %w", err)
	}
	return nil
}

// Transcript returns the session's full persisted transcript, oldest-first.
func (s *SQLiteStore) Transcript(ctx context.Context, sessionID string) ([]TranscriptEntry, error) {
	const q = `SELECT speaker, text, created_at FROM transcript_entries WHERE session_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: transcript: %w", err)
	}
	defer rows.Close()

	var entries []TranscriptEntry
	for rows.Next() {
		var e TranscriptEntry
		var ts int64
		if err := rows.Scan(&e.Speaker, &e.Text, &ts); err != nil {
			return nil, fmt.Errorf("store: transcript scan: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: transcript rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
