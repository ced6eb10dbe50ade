package llm

import (
	"errors"
	"fmt"
)

// ErrProviderUnavailable signals that no credential is configured for the
// selected provider. Fatal for that provider only; never retried.
var ErrProviderUnavailable = errors.New("provider unavailable: credential not configured")

// ProviderError carries an upstream non-success response. Retryable at the
// caller's discretion.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// MalformedResponseError signals a provider reply containing neither content
// nor tool calls. Non-retryable: a consistently broken reply shape would
// otherwise loop forever.
type MalformedResponseError struct {
	Provider string
	Detail   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("provider %s returned a malformed response: %s", e.Provider, e.Detail)
}

// IsRetryable reports whether an invocation error is worth retrying.
// Only upstream provider failures qualify, and of those only rate limits
// and server-side errors.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Status == 429 || pe.Status >= 500
}
