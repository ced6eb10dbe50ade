package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/events"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/session"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

// ErrNotCompleted is returned when scoring is requested for a session that
// did not complete.
var ErrNotCompleted = errors.New("session is not completed")

// ErrAlreadyEvaluated is returned when a session already has its
// evaluation.
var ErrAlreadyEvaluated = errors.New("session already evaluated")

// Aggregator scores sessions and maintains the leaderboard.
type Aggregator struct {
	store    *store.Store
	primary  Scorer // may be nil when no external scorer is configured
	fallback Scorer
	events   *events.Broadcaster
	logger   zerolog.Logger

	// Per-model locks serialize same-model leaderboard recomputes.
	modelMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewAggregator creates a scoring aggregator. primary may be nil; fallback
// must not be.
func NewAggregator(st *store.Store, primary, fallback Scorer, broadcaster *events.Broadcaster, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:    st,
		primary:  primary,
		fallback: fallback,
		events:   broadcaster,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the recompute lock for one model. Entries are never
// pruned; the map is bounded by the number of configured models.
func (a *Aggregator) lockFor(modelID string) *sync.Mutex {
	a.modelMu.Lock()
	defer a.modelMu.Unlock()
	if lock, ok := a.locks[modelID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	a.locks[modelID] = lock
	return lock
}

// EvaluateSession scores one completed session, persists its evaluation
// and recomputes the model's leaderboard entry. A session is evaluated at
// most once.
func (a *Aggregator) EvaluateSession(ctx context.Context, sessionID string, successCriteria []string) (*store.Evaluation, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != string(session.StatusCompleted) {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, ErrNotCompleted)
	}

	if _, err := a.store.EvaluationBySession(ctx, sessionID); err == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrAlreadyEvaluated)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	transcript, err := a.store.OrderedMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := a.score(ctx, transcript, successCriteria)

	ev := store.Evaluation{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		ModelID:         sess.ModelID,
		OverallScore:    result.OverallScore,
		Metrics:         result.Metrics,
		FailureAnalysis: result.FailureAnalysis,
		ScorerTraceID:   result.TraceID,
		ScoringSource:   result.Source,
		EvaluatedAt:     time.Now(),
	}
	if err := a.store.InsertEvaluation(ctx, ev); err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("sessionId", sessionID).
		Str("model", sess.ModelID).
		Float64("score", ev.OverallScore).
		Str("source", ev.ScoringSource).
		Msg("Session evaluated")
	a.events.Publish(events.EventEvaluationRecorded, map[string]interface{}{
		"sessionId":    sessionID,
		"model":        sess.ModelID,
		"overallScore": ev.OverallScore,
		"source":       ev.ScoringSource,
	})

	if err := a.RecomputeLeaderboard(ctx, sess.ModelID); err != nil {
		return nil, err
	}
	return &ev, nil
}

// score runs the primary scorer and falls back to the simulated scorer on
// any failure. Scoring itself never fails the pipeline.
func (a *Aggregator) score(ctx context.Context, transcript []store.Message, successCriteria []string) *Result {
	if a.primary != nil {
		result, err := a.primary.Score(ctx, transcript, successCriteria)
		if err == nil {
			return result
		}
		a.logger.Warn().Err(err).Msg("External scoring failed, falling back to simulated")
	}

	result, err := a.fallback.Score(ctx, transcript, successCriteria)
	if err != nil {
		// The simulated scorer cannot fail; guard anyway.
		a.logger.Error().Err(err).Msg("Fallback scoring failed")
		return &Result{Source: SourceSimulated}
	}
	return result
}

// RecomputeLeaderboard rebuilds one model's leaderboard entry from scratch
// out of its completed sessions' evaluations. No evaluations left means the
// entry is deleted. The recompute is always total, never incremental, so
// any interleaving of inserts and deletes converges on the same entry.
func (a *Aggregator) RecomputeLeaderboard(ctx context.Context, modelID string) error {
	lock := a.lockFor(modelID)
	lock.Lock()
	defer lock.Unlock()

	evs, err := a.store.EvaluationsByModel(ctx, modelID)
	if err != nil {
		return err
	}

	if len(evs) == 0 {
		if err := a.store.DeleteLeaderboardEntry(ctx, modelID); err != nil {
			return err
		}
		a.logger.Info().Str("model", modelID).Msg("Leaderboard entry removed")
		a.events.Publish(events.EventLeaderboardUpdated, map[string]interface{}{
			"model":   modelID,
			"removed": true,
		})
		return nil
	}

	sessions, err := a.store.SessionsByModel(ctx, modelID)
	if err != nil {
		return err
	}
	categoryOf := make(map[string]string, len(sessions))
	for _, sess := range sessions {
		categoryOf[sess.ID] = sess.ScenarioCategory
	}

	var sum store.Metrics
	var overallSum float64
	categorySums := map[string]float64{}
	categoryCounts := map[string]int{}

	for _, ev := range evs {
		sum.ToolAccuracy += ev.Metrics.ToolAccuracy
		sum.Empathy += ev.Metrics.Empathy
		sum.FactualCorrectness += ev.Metrics.FactualCorrectness
		sum.Completeness += ev.Metrics.Completeness
		sum.SafetyCompliance += ev.Metrics.SafetyCompliance
		overallSum += ev.OverallScore

		if cat := categoryOf[ev.SessionID]; cat != "" {
			categorySums[cat] += ev.OverallScore
			categoryCounts[cat]++
		}
	}

	n := float64(len(evs))
	categoryScores := make(map[string]float64, len(catalog.Categories))
	for _, cat := range catalog.Categories {
		if count := categoryCounts[string(cat)]; count > 0 {
			categoryScores[string(cat)] = categorySums[string(cat)] / float64(count)
		} else {
			categoryScores[string(cat)] = 0
		}
	}

	entry := store.LeaderboardEntry{
		ModelID:          modelID,
		OverallScore:     overallSum / n,
		TotalEvaluations: len(evs),
		Metrics: store.Metrics{
			ToolAccuracy:       sum.ToolAccuracy / n,
			Empathy:            sum.Empathy / n,
			FactualCorrectness: sum.FactualCorrectness / n,
			Completeness:       sum.Completeness / n,
			SafetyCompliance:   sum.SafetyCompliance / n,
		},
		CategoryScores: categoryScores,
		UpdatedAt:      time.Now(),
	}

	if err := a.store.UpsertLeaderboardEntry(ctx, entry); err != nil {
		return err
	}

	a.logger.Info().
		Str("model", modelID).
		Float64("score", entry.OverallScore).
		Int("evaluations", entry.TotalEvaluations).
		Msg("Leaderboard recomputed")
	a.events.Publish(events.EventLeaderboardUpdated, map[string]interface{}{
		"model":        modelID,
		"overallScore": entry.OverallScore,
		"evaluations":  entry.TotalEvaluations,
	})
	return nil
}

// RecomputeAll recomputes every model that has sessions or a leaderboard
// entry, removing entries whose evaluations are gone.
func (a *Aggregator) RecomputeAll(ctx context.Context) error {
	models := map[string]struct{}{}

	sessions, err := a.store.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		models[sess.ModelID] = struct{}{}
	}

	entries, err := a.store.ListLeaderboard(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		models[entry.ModelID] = struct{}{}
	}

	for modelID := range models {
		if err := a.RecomputeLeaderboard(ctx, modelID); err != nil {
			return err
		}
	}
	return nil
}
