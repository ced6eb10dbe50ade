package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

const (
	defaultMaxPollAttempts = 12
	defaultPollInterval    = 15 * time.Second

	// Partial scorer results are accepted once this many polls have passed.
	partialAcceptAttempt = 4
)

// expectedScorerKeys are the raw metrics a fully scored trace carries.
var expectedScorerKeys = []string{
	"toolSelectionQuality",
	"toolErrorRate",
	"toxicityGpt",
	"promptInjectionGpt",
	"factuality",
	"completenessGpt",
	"empathy",
}

// ExternalScorer posts transcripts to a remote scoring service and polls
// for scorer results.
type ExternalScorer struct {
	baseURL      string
	apiKey       string
	project      string
	client       *http.Client
	maxAttempts  int
	pollInterval time.Duration
	logger       zerolog.Logger
}

// ExternalConfig configures the external scorer.
type ExternalConfig struct {
	BaseURL string
	APIKey  string
	Project string

	// MaxAttempts and PollInterval bound the score polling loop. Zero
	// values mean 12 attempts 15s apart.
	MaxAttempts  int
	PollInterval time.Duration
}

// NewExternalScorer creates an external scorer.
func NewExternalScorer(cfg ExternalConfig, logger zerolog.Logger) *ExternalScorer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &ExternalScorer{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		project:      cfg.Project,
		client:       &http.Client{Timeout: 30 * time.Second},
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: cfg.PollInterval,
		logger:       logger,
	}
}

// Name returns the scoring source tag.
func (s *ExternalScorer) Name() string { return SourceExternal }

// Configured reports whether the scorer has an endpoint and credential.
func (s *ExternalScorer) Configured() bool {
	return s.baseURL != "" && s.apiKey != ""
}

type tracePayload struct {
	Project         string          `json:"project"`
	Messages        []store.Message `json:"messages"`
	SuccessCriteria []string        `json:"successCriteria"`
}

type traceResponse struct {
	TraceID string `json:"traceId"`
}

type scoresResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Score submits the transcript as a trace and polls for scorer results.
// Incomplete results are accepted after the fourth poll; no results at all
// is an error, which callers handle by falling back to simulated scoring.
func (s *ExternalScorer) Score(ctx context.Context, transcript []store.Message, successCriteria []string) (*Result, error) {
	traceID, err := s.submitTrace(ctx, transcript, successCriteria)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("traceId", traceID).Msg("Trace submitted to scorer")

	raw, err := s.pollScores(ctx, traceID)
	if err != nil {
		return nil, err
	}

	metrics := MapRawScores(raw)
	return &Result{
		Metrics:         metrics,
		OverallScore:    ComputeOverall(metrics),
		FailureAnalysis: FailureAnalysis(metrics),
		TraceID:         traceID,
		Source:          SourceExternal,
	}, nil
}

func (s *ExternalScorer) submitTrace(ctx context.Context, transcript []store.Message, successCriteria []string) (string, error) {
	body, err := json.Marshal(tracePayload{
		Project:         s.project,
		Messages:        transcript,
		SuccessCriteria: successCriteria,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/traces", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit trace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("scorer rejected trace: status %d: %s", resp.StatusCode, data)
	}

	var trace traceResponse
	if err := json.NewDecoder(resp.Body).Decode(&trace); err != nil {
		return "", fmt.Errorf("failed to decode trace response: %w", err)
	}
	if trace.TraceID == "" {
		return "", fmt.Errorf("scorer returned empty trace id")
	}
	return trace.TraceID, nil
}

func (s *ExternalScorer) pollScores(ctx context.Context, traceID string) (map[string]float64, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}

		raw, err := s.fetchScores(ctx, traceID)
		if err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Score poll failed")
			continue
		}
		if len(raw) == 0 {
			continue
		}

		missing := 0
		for _, key := range expectedScorerKeys {
			if _, ok := raw[key]; !ok {
				missing++
			}
		}
		if missing == 0 {
			s.logger.Info().Int("attempt", attempt).Msg("All scorer metrics retrieved")
			return raw, nil
		}
		if attempt >= partialAcceptAttempt {
			s.logger.Info().
				Int("attempt", attempt).
				Int("missing", missing).
				Msg("Accepting partial scorer results")
			return raw, nil
		}
	}

	return nil, fmt.Errorf("scorer results not available after %d attempts", s.maxAttempts)
}

func (s *ExternalScorer) fetchScores(ctx context.Context, traceID string) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/traces/"+traceID+"/scores", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("score fetch failed: status %d", resp.StatusCode)
	}

	var scores scoresResponse
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, fmt.Errorf("failed to decode scores: %w", err)
	}
	return scores.Scores, nil
}
