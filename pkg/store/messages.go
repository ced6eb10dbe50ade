package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ToolCallRecord is one tool invocation recorded on an assistant message.
type ToolCallRecord struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Message is one turn's content within a session. Append-only.
type Message struct {
	ID         int64
	SessionID  string
	Role       string
	Content    string
	TurnNumber int
	ToolCalls  []ToolCallRecord
	ToolCallID string
	Timestamp  time.Time
}

// InsertMessage appends a message. Prior messages are never mutated.
func (s *Store) InsertMessage(ctx context.Context, msg Message) error {
	var toolCalls interface{}
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCalls = string(data)
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, turn_number, tool_calls, tool_call_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, msg.TurnNumber, toolCalls,
		nullStr(msg.ToolCallID), millis(ts))
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// MessagesBySession returns a session's messages in insertion order.
func (s *Store) MessagesBySession(ctx context.Context, sessionID string) ([]Message, error) {
	return s.queryMessages(ctx, `
		SELECT id, session_id, role, content, turn_number, tool_calls, tool_call_id, timestamp
		FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
}

// OrderedMessages returns a session's messages totally ordered by
// turn_number, then insertion order.
func (s *Store) OrderedMessages(ctx context.Context, sessionID string) ([]Message, error) {
	return s.queryMessages(ctx, `
		SELECT id, session_id, role, content, turn_number, tool_calls, tool_call_id, timestamp
		FROM messages WHERE session_id = ? ORDER BY turn_number, id`, sessionID)
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...interface{}) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		var toolCalls, toolCallID sql.NullString
		var ts int64

		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&msg.TurnNumber, &toolCalls, &toolCallID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls: %w", err)
			}
		}
		msg.ToolCallID = toolCallID.String
		msg.Timestamp = time.UnixMilli(ts)
		out = append(out, msg)
	}
	return out, rows.Err()
}
