package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LeaderboardEntry is the aggregated per-model score. It is a materialized
// view over the model's evaluations, idempotently recomputable, never a
// source of truth.
type LeaderboardEntry struct {
	ModelID          string
	OverallScore     float64
	TotalEvaluations int
	Metrics          Metrics
	CategoryScores   map[string]float64
	UpdatedAt        time.Time
}

// UpsertLeaderboardEntry creates or overwrites one model's entry.
func (s *Store) UpsertLeaderboardEntry(ctx context.Context, entry LeaderboardEntry) error {
	categories, err := json.Marshal(entry.CategoryScores)
	if err != nil {
		return fmt.Errorf("failed to marshal category scores: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leaderboard (model_id, overall_score, total_evaluations, tool_accuracy,
			empathy, factual_correctness, completeness, safety_compliance, category_scores, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(model_id) DO UPDATE SET
			overall_score = excluded.overall_score,
			total_evaluations = excluded.total_evaluations,
			tool_accuracy = excluded.tool_accuracy,
			empathy = excluded.empathy,
			factual_correctness = excluded.factual_correctness,
			completeness = excluded.completeness,
			safety_compliance = excluded.safety_compliance,
			category_scores = excluded.category_scores,
			updated_at = excluded.updated_at`,
		entry.ModelID, entry.OverallScore, entry.TotalEvaluations, entry.Metrics.ToolAccuracy,
		entry.Metrics.Empathy, entry.Metrics.FactualCorrectness, entry.Metrics.Completeness,
		entry.Metrics.SafetyCompliance, string(categories), millis(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %w", err)
	}
	return nil
}

// GetLeaderboardEntry fetches one model's entry.
func (s *Store) GetLeaderboardEntry(ctx context.Context, modelID string) (*LeaderboardEntry, error) {
	entries, err := s.queryLeaderboard(ctx, `
		SELECT model_id, overall_score, total_evaluations, tool_accuracy, empathy,
			factual_correctness, completeness, safety_compliance, category_scores, updated_at
		FROM leaderboard WHERE model_id = ?`, modelID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// ListLeaderboard returns every entry ranked by overall score descending.
func (s *Store) ListLeaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	return s.queryLeaderboard(ctx, `
		SELECT model_id, overall_score, total_evaluations, tool_accuracy, empathy,
			factual_correctness, completeness, safety_compliance, category_scores, updated_at
		FROM leaderboard ORDER BY overall_score DESC`)
}

// DeleteLeaderboardEntry removes one model's entry. Deleting an absent
// entry is not an error: recompute after a full clear must be idempotent.
func (s *Store) DeleteLeaderboardEntry(ctx context.Context, modelID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM leaderboard WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to delete leaderboard entry: %w", err)
	}
	return nil
}

func (s *Store) queryLeaderboard(ctx context.Context, query string, args ...interface{}) ([]LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var entry LeaderboardEntry
		var categories string
		var updatedAt int64

		if err := rows.Scan(&entry.ModelID, &entry.OverallScore, &entry.TotalEvaluations,
			&entry.Metrics.ToolAccuracy, &entry.Metrics.Empathy, &entry.Metrics.FactualCorrectness,
			&entry.Metrics.Completeness, &entry.Metrics.SafetyCompliance,
			&categories, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}

		if err := json.Unmarshal([]byte(categories), &entry.CategoryScores); err != nil {
			return nil, fmt.Errorf("failed to decode category scores: %w", err)
		}
		entry.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, entry)
	}
	return out, rows.Err()
}
