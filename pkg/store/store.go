// Package store is the storage collaborator for the evaluation
// orchestrator. It persists sessions, their messages, per-session
// evaluations and the derived leaderboard in sqlite, and exposes the access
// pattern the orchestrator needs: insert, partial patch by id, get by id,
// indexed equality queries with optional ordering, and delete by id with
// cascade for bulk clears.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the sqlite database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path and initializes the
// schema.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	// foreign_keys is per-connection in sqlite, so it has to go through the
	// driver DSN to reach every connection in the pool. A plain Exec would
	// enable it on a single pooled connection only, and cascades would not
	// fire for deletes served by the others.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode persists in the database file, so once is enough.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Store opened")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		session_key TEXT NOT NULL UNIQUE,
		scenario_title TEXT NOT NULL,
		scenario_category TEXT NOT NULL,
		model_id TEXT NOT NULL,
		persona_name TEXT NOT NULL,
		status TEXT NOT NULL,
		total_turns INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at INTEGER,
		completed_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_model ON sessions(model_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		tool_calls TEXT,
		tool_call_id TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, turn_number);

	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE REFERENCES sessions(id) ON DELETE CASCADE,
		model_id TEXT NOT NULL,
		overall_score REAL NOT NULL,
		tool_accuracy REAL NOT NULL,
		empathy REAL NOT NULL,
		factual_correctness REAL NOT NULL,
		completeness REAL NOT NULL,
		safety_compliance REAL NOT NULL,
		failure_analysis TEXT,
		scorer_trace_id TEXT,
		scoring_source TEXT NOT NULL,
		evaluated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_evaluations_model ON evaluations(model_id);

	CREATE TABLE IF NOT EXISTS leaderboard (
		model_id TEXT PRIMARY KEY,
		overall_score REAL NOT NULL,
		total_evaluations INTEGER NOT NULL,
		tool_accuracy REAL NOT NULL,
		empathy REAL NOT NULL,
		factual_correctness REAL NOT NULL,
		completeness REAL NOT NULL,
		safety_compliance REAL NOT NULL,
		category_scores TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
