// Package scoring turns finished session transcripts into evaluations and
// keeps the per-model leaderboard consistent with them. Scoring prefers the
// external scorer when one is configured and always falls back to a
// deterministic simulated scorer, so the pipeline never blocks on scorer
// availability.
package scoring

import (
	"context"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

// Scoring sources recorded on evaluations.
const (
	SourceExternal  = "external"
	SourceSimulated = "simulated"
)

// Result is one scorer's verdict on a transcript.
type Result struct {
	Metrics         store.Metrics
	OverallScore    float64
	FailureAnalysis []string
	TraceID         string
	Source          string
}

// Scorer scores a session transcript against the scenario's success
// criteria.
type Scorer interface {
	// Score evaluates the transcript. All metric values are in [0,1].
	Score(ctx context.Context, transcript []store.Message, successCriteria []string) (*Result, error)

	// Name returns the scorer's source tag.
	Name() string
}
