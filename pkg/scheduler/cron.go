package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/scoring"
)

// Reconciler periodically recomputes every model's leaderboard entry, so
// entries converge even if an inline recompute was missed (crash between
// evaluation insert and upsert, manual DB surgery).
type Reconciler struct {
	aggregator *scoring.Aggregator
	cron       *cron.Cron
	logger     zerolog.Logger
}

// NewReconciler creates a reconcile job on the given cron schedule
// (standard 5-field format, e.g. "*/30 * * * *").
func NewReconciler(aggregator *scoring.Aggregator, schedule string, logger zerolog.Logger) (*Reconciler, error) {
	r := &Reconciler{
		aggregator: aggregator,
		cron:       cron.New(),
		logger:     logger,
	}

	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.aggregator.RecomputeAll(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("Leaderboard reconcile failed")
			return
		}
		r.logger.Info().Msg("Leaderboards reconciled")
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the schedule.
func (r *Reconciler) Start() {
	r.cron.Start()
	r.logger.Info().Msg("Leaderboard reconciler started")
}

// Stop halts the schedule and waits for a running job to finish.
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("Leaderboard reconciler stopped")
}
