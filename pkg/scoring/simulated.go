package scoring

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

// SimulatedScorer derives stable scores from the transcript itself. The
// same transcript always scores the same, so re-runs and tests are
// reproducible without any external service.
type SimulatedScorer struct{}

// NewSimulatedScorer creates the fallback scorer.
func NewSimulatedScorer() *SimulatedScorer { return &SimulatedScorer{} }

// Name returns the scoring source tag.
func (s *SimulatedScorer) Name() string { return SourceSimulated }

// Score fabricates plausible metrics seeded by the transcript content.
// Transcript signals nudge the base scores: tool usage lifts tool accuracy,
// longer conversations lift completeness.
func (s *SimulatedScorer) Score(_ context.Context, transcript []store.Message, successCriteria []string) (*Result, error) {
	h := fnv.New64a()
	for _, msg := range transcript {
		h.Write([]byte(msg.Role))
		h.Write([]byte(msg.Content))
	}
	seed := h.Sum64()

	toolCalls := 0
	assistantTurns := 0
	for _, msg := range transcript {
		toolCalls += len(msg.ToolCalls)
		if msg.Role == "assistant" && msg.Content != "" {
			assistantTurns++
		}
	}

	toolBonus := 0.0
	if toolCalls > 0 {
		toolBonus = 0.15
	}
	depthBonus := float64(assistantTurns) * 0.01
	if depthBonus > 0.05 {
		depthBonus = 0.05
	}

	metrics := store.Metrics{
		ToolAccuracy:       clamp(0.60 + jitter(seed, 0) + toolBonus),
		Empathy:            clamp(0.65 + jitter(seed, 1)),
		FactualCorrectness: clamp(0.65 + jitter(seed, 2)),
		Completeness:       clamp(0.60 + jitter(seed, 3) + depthBonus),
		SafetyCompliance:   clamp(0.80 + jitter(seed, 4)),
	}

	return &Result{
		Metrics:         metrics,
		OverallScore:    ComputeOverall(metrics),
		FailureAnalysis: FailureAnalysis(metrics),
		TraceID:         fmt.Sprintf("simulated-%x", seed),
		Source:          SourceSimulated,
	}, nil
}

// jitter maps (seed, slot) to a deterministic offset in [0, 0.20).
func jitter(seed uint64, slot uint64) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", seed, slot)
	return float64(h.Sum64()%2000) / 10000.0
}
