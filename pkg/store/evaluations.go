package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Metrics holds the fixed sub-metric scores of an evaluation, each in [0,1].
type Metrics struct {
	ToolAccuracy       float64 `json:"toolAccuracy"`
	Empathy            float64 `json:"empathy"`
	FactualCorrectness float64 `json:"factualCorrectness"`
	Completeness       float64 `json:"completeness"`
	SafetyCompliance   float64 `json:"safetyCompliance"`
}

// Evaluation is the scored outcome of one completed session. Created once,
// never mutated.
type Evaluation struct {
	ID              string
	SessionID       string
	ModelID         string
	OverallScore    float64
	Metrics         Metrics
	FailureAnalysis []string
	ScorerTraceID   string
	ScoringSource   string // external or simulated
	EvaluatedAt     time.Time
}

// InsertEvaluation persists one evaluation. The unique constraint on
// session_id enforces the one-evaluation-per-session invariant.
func (s *Store) InsertEvaluation(ctx context.Context, ev Evaluation) error {
	var failures interface{}
	if len(ev.FailureAnalysis) > 0 {
		data, err := json.Marshal(ev.FailureAnalysis)
		if err != nil {
			return fmt.Errorf("failed to marshal failure analysis: %w", err)
		}
		failures = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations (id, session_id, model_id, overall_score, tool_accuracy,
			empathy, factual_correctness, completeness, safety_compliance,
			failure_analysis, scorer_trace_id, scoring_source, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.ModelID, ev.OverallScore, ev.Metrics.ToolAccuracy,
		ev.Metrics.Empathy, ev.Metrics.FactualCorrectness, ev.Metrics.Completeness,
		ev.Metrics.SafetyCompliance, failures, nullStr(ev.ScorerTraceID),
		ev.ScoringSource, millis(ev.EvaluatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

// EvaluationBySession fetches the evaluation of one session.
func (s *Store) EvaluationBySession(ctx context.Context, sessionID string) (*Evaluation, error) {
	evs, err := s.queryEvaluations(ctx, `
		SELECT id, session_id, model_id, overall_score, tool_accuracy, empathy,
			factual_correctness, completeness, safety_compliance,
			failure_analysis, scorer_trace_id, scoring_source, evaluated_at
		FROM evaluations WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, ErrNotFound
	}
	return &evs[0], nil
}

// EvaluationsByModel returns every evaluation belonging to a completed
// session of the given model, joined so deleted sessions drop out.
func (s *Store) EvaluationsByModel(ctx context.Context, modelID string) ([]Evaluation, error) {
	return s.queryEvaluations(ctx, `
		SELECT e.id, e.session_id, e.model_id, e.overall_score, e.tool_accuracy, e.empathy,
			e.factual_correctness, e.completeness, e.safety_compliance,
			e.failure_analysis, e.scorer_trace_id, e.scoring_source, e.evaluated_at
		FROM evaluations e
		JOIN sessions s ON s.id = e.session_id
		WHERE e.model_id = ? AND s.status = 'completed'
		ORDER BY e.evaluated_at`, modelID)
}

func (s *Store) queryEvaluations(ctx context.Context, query string, args ...interface{}) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var ev Evaluation
		var failures, traceID sql.NullString
		var evaluatedAt int64

		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.ModelID, &ev.OverallScore,
			&ev.Metrics.ToolAccuracy, &ev.Metrics.Empathy, &ev.Metrics.FactualCorrectness,
			&ev.Metrics.Completeness, &ev.Metrics.SafetyCompliance,
			&failures, &traceID, &ev.ScoringSource, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}

		if failures.Valid && failures.String != "" {
			if err := json.Unmarshal([]byte(failures.String), &ev.FailureAnalysis); err != nil {
				return nil, fmt.Errorf("failed to decode failure analysis: %w", err)
			}
		}
		ev.ScorerTraceID = traceID.String
		ev.EvaluatedAt = time.UnixMilli(evaluatedAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}
