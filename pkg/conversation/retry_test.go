package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
)

func TestInvokeWithRetry_SuccessFirstAttempt(t *testing.T) {
	attempts := 0
	provider := &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			attempts++
			return &llm.Response{Content: "ok"}, nil
		},
	}

	resp, err := invokeWithRetry(context.Background(), provider, llm.Request{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, attempts)
}

func TestInvokeWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	attempts := 0
	provider := &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			attempts++
			return nil, &llm.ProviderError{Provider: "agent", Status: 401, Body: "bad key"}
		},
	}

	_, err := invokeWithRetry(context.Background(), provider, llm.Request{}, zerolog.Nop())
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.NotContains(t, err.Error(), "max retries")
}

func TestInvokeWithRetry_RetriesRateLimit(t *testing.T) {
	attempts := 0
	provider := &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			attempts++
			if attempts < 2 {
				return nil, &llm.ProviderError{Provider: "agent", Status: 429, Body: "slow down"}
			}
			return &llm.Response{Content: "ok"}, nil
		},
	}

	started := time.Now()
	resp, err := invokeWithRetry(context.Background(), provider, llm.Request{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, time.Since(started), time.Second)
}

func TestInvokeWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	provider := &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			return nil, &llm.ProviderError{Provider: "agent", Status: 503, Body: "overloaded"}
		},
	}

	_, err := invokeWithRetry(ctx, provider, llm.Request{}, zerolog.Nop())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
