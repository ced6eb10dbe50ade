package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Session is one evaluation run of (scenario, persona, model). Owned by the
// session lifecycle manager and mutated only through PatchSession.
type Session struct {
	ID               string
	SessionKey       string
	ScenarioTitle    string
	ScenarioCategory string
	ModelID          string
	PersonaName      string
	Status           string
	TotalTurns       int
	ErrorMessage     string
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
}

// SessionPatch is an explicit partial update: only non-nil fields are
// written, untouched fields are preserved.
type SessionPatch struct {
	Status       *string
	TotalTurns   *int
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func optMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

// InsertSession inserts a new session record.
func (s *Store) InsertSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, session_key, scenario_title, scenario_category, model_id,
			persona_name, status, total_turns, error_message, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.SessionKey, sess.ScenarioTitle, sess.ScenarioCategory, sess.ModelID,
		sess.PersonaName, sess.Status, sess.TotalTurns, nullStr(sess.ErrorMessage),
		optMillis(sess.StartedAt), optMillis(sess.CompletedAt), millis(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// InsertSessions inserts a batch of sibling sessions.
func (s *Store) InsertSessions(ctx context.Context, sessions []Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions (id, session_key, scenario_title, scenario_category, model_id,
			persona_name, status, total_turns, error_message, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, sess := range sessions {
		if _, err := stmt.ExecContext(ctx,
			sess.ID, sess.SessionKey, sess.ScenarioTitle, sess.ScenarioCategory, sess.ModelID,
			sess.PersonaName, sess.Status, sess.TotalTurns, nullStr(sess.ErrorMessage),
			optMillis(sess.StartedAt), optMillis(sess.CompletedAt), millis(sess.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
		}
	}
	return tx.Commit()
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_key, scenario_title, scenario_category, model_id, persona_name,
			status, total_turns, error_message, started_at, completed_at, created_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// SessionByKey fetches a session by its human-facing session key.
func (s *Store) SessionByKey(ctx context.Context, key string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_key, scenario_title, scenario_category, model_id, persona_name,
			status, total_turns, error_message, started_at, completed_at, created_at
		FROM sessions WHERE session_key = ?`, key)
	return scanSession(row)
}

// PatchSession applies a partial update to one session.
func (s *Store) PatchSession(ctx context.Context, id string, patch SessionPatch) error {
	sets := []string{}
	args := []interface{}{}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.TotalTurns != nil {
		sets = append(sets, "total_turns = ?")
		args = append(args, *patch.TotalTurns)
	}
	if patch.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *patch.ErrorMessage)
	}
	if patch.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, patch.StartedAt.UnixMilli())
	}
	if patch.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, patch.CompletedAt.UnixMilli())
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE sessions SET %s WHERE id = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("failed to patch session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SessionsByModel returns every session for a model, newest first.
func (s *Store) SessionsByModel(ctx context.Context, modelID string) ([]Session, error) {
	return s.querySessions(ctx, `
		SELECT id, session_key, scenario_title, scenario_category, model_id, persona_name,
			status, total_turns, error_message, started_at, completed_at, created_at
		FROM sessions WHERE model_id = ? ORDER BY created_at DESC`, modelID)
}

// SessionsByStatus returns every session in a given status.
func (s *Store) SessionsByStatus(ctx context.Context, status string) ([]Session, error) {
	return s.querySessions(ctx, `
		SELECT id, session_key, scenario_title, scenario_category, model_id, persona_name,
			status, total_turns, error_message, started_at, completed_at, created_at
		FROM sessions WHERE status = ? ORDER BY created_at DESC`, status)
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	return s.querySessions(ctx, `
		SELECT id, session_key, scenario_title, scenario_category, model_id, persona_name,
			status, total_turns, error_message, started_at, completed_at, created_at
		FROM sessions ORDER BY created_at DESC`)
}

// DeleteSession removes a session; messages and its evaluation cascade.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearModel deletes every session (with cascading messages and
// evaluations) for one model. Returns the number of sessions removed.
func (s *Store) ClearModel(ctx context.Context, modelID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE model_id = ?", modelID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear sessions for %s: %w", modelID, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearAll deletes every session, message, evaluation and leaderboard row.
func (s *Store) ClearAll(ctx context.Context) error {
	for _, stmt := range []string{
		"DELETE FROM sessions",
		"DELETE FROM leaderboard",
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
	}
	return nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...interface{}) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInto(sc rowScanner) (*Session, error) {
	var sess Session
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullInt64
	var createdAt int64

	err := sc.Scan(&sess.ID, &sess.SessionKey, &sess.ScenarioTitle, &sess.ScenarioCategory,
		&sess.ModelID, &sess.PersonaName, &sess.Status, &sess.TotalTurns,
		&errMsg, &startedAt, &completedAt, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	sess.ErrorMessage = errMsg.String
	sess.StartedAt = fromMillis(startedAt)
	sess.CompletedAt = fromMillis(completedAt)
	sess.CreatedAt = time.UnixMilli(createdAt)
	return &sess, nil
}

func scanSession(row *sql.Row) (*Session, error)      { return scanInto(row) }
func scanSessionRows(rows *sql.Rows) (*Session, error) { return scanInto(rows) }

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
