package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
)

const defaultMaxRetries = 3

// invokeWithRetry calls the provider with exponential backoff on retryable
// provider errors (rate limits, 5xx). Malformed responses and missing
// credentials fail immediately.
func invokeWithRetry(ctx context.Context, provider llm.Provider, req llm.Request, logger zerolog.Logger) (*llm.Response, error) {
	var lastErr error

	for attempt := 0; attempt < defaultMaxRetries; attempt++ {
		response, err := provider.Invoke(ctx, req)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !llm.IsRetryable(err) {
			return nil, err
		}
		if attempt == defaultMaxRetries-1 {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		delayMs := 1000 * (1 << attempt)
		logger.Info().
			Str("provider", provider.Name()).
			Int("attempt", attempt+1).
			Int("delayMs", delayMs).
			Msg("Retrying after provider error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(delayMs) * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", defaultMaxRetries, lastErr)
}
