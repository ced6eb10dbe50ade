// Package scheduler expands a run request into sessions and drives each one
// through the conversation engine and scoring with a bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/conversation"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/events"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/scoring"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/session"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

// RestartPolicy decides what happens when a (scenario, model) pair already
// has a terminal session.
type RestartPolicy string

const (
	// RestartSkip short-circuits pairs that already finished.
	RestartSkip RestartPolicy = "skip"
	// RestartDuplicate always runs an independent new session.
	RestartDuplicate RestartPolicy = "duplicate"
)

// ValidRestartPolicy reports whether p is a known policy.
func ValidRestartPolicy(p RestartPolicy) bool {
	return p == RestartSkip || p == RestartDuplicate
}

const (
	defaultConcurrency    = 3
	defaultSessionTimeout = 10 * time.Minute
)

// Config wires a Scheduler.
type Config struct {
	Catalog    *catalog.Catalog
	Registry   *llm.Registry
	Sessions   *session.Manager
	Store      *store.Store
	Engine     *conversation.Engine
	Aggregator *scoring.Aggregator
	Events     *events.Broadcaster

	// Concurrency caps simultaneously running sessions. Zero means 3.
	Concurrency int
	// SessionTimeout bounds one session end to end. Zero means 10m.
	SessionTimeout time.Duration
	// Restart defaults to RestartDuplicate.
	Restart RestartPolicy

	Logger zerolog.Logger
}

// Scheduler runs evaluation batches.
type Scheduler struct {
	catalog        *catalog.Catalog
	registry       *llm.Registry
	sessions       *session.Manager
	store          *store.Store
	engine         *conversation.Engine
	aggregator     *scoring.Aggregator
	events         *events.Broadcaster
	concurrency    int
	sessionTimeout time.Duration
	restart        RestartPolicy
	logger         zerolog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = defaultSessionTimeout
	}
	if cfg.Restart == "" {
		cfg.Restart = RestartDuplicate
	}
	return &Scheduler{
		catalog:        cfg.Catalog,
		registry:       cfg.Registry,
		sessions:       cfg.Sessions,
		store:          cfg.Store,
		engine:         cfg.Engine,
		aggregator:     cfg.Aggregator,
		events:         cfg.Events,
		concurrency:    cfg.Concurrency,
		sessionTimeout: cfg.SessionTimeout,
		restart:        cfg.Restart,
		logger:         cfg.Logger,
	}
}

// RunRequest describes one evaluation batch.
type RunRequest struct {
	// ModelIDs selects the models under test. Required.
	ModelIDs []string
	// Category optionally narrows scenarios to one category.
	Category catalog.Category
	// ScenarioTitles optionally narrows scenarios by exact title.
	ScenarioTitles []string
	// SkipScoring leaves completed sessions unevaluated.
	SkipScoring bool
}

// RunSummary reports what a batch produced.
type RunSummary struct {
	Total     int
	Skipped   int
	Completed int
	Failed    int
	Timeout   int
	Cancelled int

	// ModelScores holds each model's leaderboard score after the run, for
	// models that have one.
	ModelScores map[string]float64

	Duration time.Duration
}

type job struct {
	session  store.Session
	scenario catalog.Scenario
	persona  catalog.Persona
	tools    []catalog.Tool
	model    llm.ModelConfig
}

// Run executes the batch and blocks until every session settles.
func (s *Scheduler) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	started := time.Now()

	scenarios := s.selectScenarios(req)
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios match the request")
	}
	if len(req.ModelIDs) == 0 {
		return nil, fmt.Errorf("no models requested")
	}

	models := make([]llm.ModelConfig, 0, len(req.ModelIDs))
	for _, id := range req.ModelIDs {
		model, err := s.registry.Lookup(id)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}

	jobs, skipped, err := s.admit(ctx, scenarios, models)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("sessions", len(jobs)).
		Int("skipped", skipped).
		Int("concurrency", s.concurrency).
		Msg("Run starting")

	// Channel semaphore bounds concurrent sessions; admission is FIFO in
	// job creation order.
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				if err := s.sessions.Cancel(context.WithoutCancel(ctx), j.session.ID); err != nil {
					s.logger.Error().Err(err).Str("sessionId", j.session.ID).Msg("Failed to cancel queued session")
				}
				return
			}
			s.runOne(ctx, j, req.SkipScoring)
		}(jobs[i])
	}
	wg.Wait()

	summary, err := s.summarize(ctx, jobs, skipped, time.Since(started))
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.EventRunCompleted, map[string]interface{}{
		"total":     summary.Total,
		"completed": summary.Completed,
		"failed":    summary.Failed,
		"timeout":   summary.Timeout,
		"cancelled": summary.Cancelled,
	})
	return summary, nil
}

func (s *Scheduler) selectScenarios(req RunRequest) []catalog.Scenario {
	scenarios := s.catalog.ScenariosByCategory(req.Category)
	if len(req.ScenarioTitles) == 0 {
		return scenarios
	}

	wanted := make(map[string]struct{}, len(req.ScenarioTitles))
	for _, title := range req.ScenarioTitles {
		wanted[title] = struct{}{}
	}
	var out []catalog.Scenario
	for _, sc := range scenarios {
		if _, ok := wanted[sc.Title]; ok {
			out = append(out, sc)
		}
	}
	return out
}

// admit creates one pending session per (scenario, model) pair, honoring
// the restart policy.
func (s *Scheduler) admit(ctx context.Context, scenarios []catalog.Scenario, models []llm.ModelConfig) ([]job, int, error) {
	finished := map[string]map[string]bool{}
	if s.restart == RestartSkip {
		for _, model := range models {
			existing, err := s.store.SessionsByModel(ctx, model.ModelID)
			if err != nil {
				return nil, 0, err
			}
			done := map[string]bool{}
			for _, sess := range existing {
				if session.Status(sess.Status).Terminal() {
					done[sess.ScenarioTitle] = true
				}
			}
			finished[model.ModelID] = done
		}
	}

	var jobs []job
	var params []session.CreateParams
	skipped := 0

	for _, sc := range scenarios {
		persona, err := s.catalog.PersonaFor(sc)
		if err != nil {
			return nil, 0, err
		}
		tools := s.catalog.ToolsFor(sc)

		for _, model := range models {
			if finished[model.ModelID][sc.Title] {
				skipped++
				continue
			}
			jobs = append(jobs, job{
				scenario: sc,
				persona:  persona,
				tools:    tools,
				model:    model,
			})
			params = append(params, session.CreateParams{
				ScenarioTitle:    sc.Title,
				ScenarioCategory: string(sc.Category),
				ModelID:          model.ModelID,
				PersonaName:      persona.Name,
			})
		}
	}

	created, err := s.sessions.CreateBatch(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	for i := range jobs {
		jobs[i].session = created[i]
	}
	return jobs, skipped, nil
}

// runOne drives a single session to a terminal status. Engine errors are
// already recorded on the session; they never abort the batch.
func (s *Scheduler) runOne(ctx context.Context, j job, skipScoring bool) {
	sessionCtx, cancel := context.WithTimeout(ctx, s.sessionTimeout)
	defer cancel()

	if err := s.engine.Run(sessionCtx, &j.session, j.scenario, j.persona, j.tools, j.model); err != nil {
		s.logger.Warn().
			Err(err).
			Str("sessionId", j.session.ID).
			Str("model", j.model.ModelID).
			Msg("Session did not complete")
		return
	}

	if skipScoring {
		return
	}

	sess, err := s.sessions.Get(ctx, j.session.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("sessionId", j.session.ID).Msg("Failed to reload session for scoring")
		return
	}
	if sess.Status != string(session.StatusCompleted) {
		return
	}

	if _, err := s.aggregator.EvaluateSession(ctx, j.session.ID, j.scenario.SuccessCriteria); err != nil {
		s.logger.Error().Err(err).Str("sessionId", j.session.ID).Msg("Scoring failed")
	}
}

func (s *Scheduler) summarize(ctx context.Context, jobs []job, skipped int, elapsed time.Duration) (*RunSummary, error) {
	summary := &RunSummary{
		Total:       len(jobs),
		Skipped:     skipped,
		ModelScores: map[string]float64{},
		Duration:    elapsed,
	}

	for _, j := range jobs {
		sess, err := s.sessions.Get(ctx, j.session.ID)
		if err != nil {
			return nil, err
		}
		switch session.Status(sess.Status) {
		case session.StatusCompleted:
			summary.Completed++
		case session.StatusFailed:
			summary.Failed++
		case session.StatusTimeout:
			summary.Timeout++
		case session.StatusCancelled:
			summary.Cancelled++
		}
	}

	entries, err := s.store.ListLeaderboard(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, j := range jobs {
		seen[j.model.ModelID] = struct{}{}
	}
	for _, entry := range entries {
		if _, ok := seen[entry.ModelID]; ok {
			summary.ModelScores[entry.ModelID] = entry.OverallScore
		}
	}
	return summary, nil
}
