package llm

import (
	"context"
	"fmt"
	"os"
)

// Provider invokes one upstream model API.
type Provider interface {
	// Invoke makes a single model call. No retries are performed here.
	Invoke(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider selector.
	Name() string
}

// Credentials maps credential env var names to their values.
type Credentials map[string]string

// CredentialsFromEnv reads every credential named in the provider table
// from the process environment.
func CredentialsFromEnv() Credentials {
	creds := Credentials{}
	for _, settings := range providerTable {
		if v := os.Getenv(settings.EnvKey); v != "" {
			creds[settings.EnvKey] = v
		}
	}
	return creds
}

// Has reports whether a credential is configured under the given env key.
func (c Credentials) Has(envKey string) bool {
	return c[envKey] != ""
}

// Factory creates providers from the dispatch table and a credential set.
type Factory struct {
	creds Credentials
}

// NewFactory creates a provider factory bound to a credential set.
func NewFactory(creds Credentials) *Factory {
	return &Factory{creds: creds}
}

// NewProvider builds a Provider for the given selector. A missing credential
// yields ErrProviderUnavailable wrapped with the provider name.
func (f *Factory) NewProvider(provider string) (Provider, error) {
	settings, ok := Settings(provider)
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	apiKey := f.creds[settings.EnvKey]
	if apiKey == "" {
		return nil, fmt.Errorf("%s (set %s): %w", provider, settings.EnvKey, ErrProviderUnavailable)
	}

	if provider == "anthropic" {
		return NewAnthropicProvider(apiKey), nil
	}
	return NewOpenAICompatProvider(provider, apiKey, settings), nil
}
