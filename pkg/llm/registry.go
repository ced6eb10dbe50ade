package llm

import (
	"fmt"
	"sync"
)

// ModelConfig describes one model eligible for evaluation.
type ModelConfig struct {
	ModelID       string `json:"model_id" mapstructure:"model_id"`
	DisplayName   string `json:"display_name" mapstructure:"display_name"`
	Provider      string `json:"provider" mapstructure:"provider"`
	APIModel      string `json:"api_model" mapstructure:"api_model"`
	EnvKey        string `json:"env_key" mapstructure:"env_key"`
	SupportsTools bool   `json:"supports_tools" mapstructure:"supports_tools"`
}

// DefaultModels returns the seed model registry.
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{
			ModelID:       "gpt-4o",
			DisplayName:   "GPT-4o",
			Provider:      "openai",
			APIModel:      "gpt-4o",
			EnvKey:        "OPENAI_API_KEY",
			SupportsTools: true,
		},
		{
			ModelID:       "claude-sonnet-4-5",
			DisplayName:   "Claude Sonnet 4.5",
			Provider:      "openrouter",
			APIModel:      "anthropic/claude-sonnet-4.5",
			EnvKey:        "OPENROUTER_API_KEY",
			SupportsTools: true,
		},
		{
			ModelID:       "llama-3.3-70b-versatile",
			DisplayName:   "Llama 3.3 70B",
			Provider:      "groq",
			APIModel:      "llama-3.3-70b-versatile",
			EnvKey:        "GROQ_API_KEY",
			SupportsTools: true,
		},
	}
}

// Registry holds the known model configurations. It is explicitly
// constructed and passed around; there is no process-wide registry cache.
type Registry struct {
	mu     sync.RWMutex
	models []ModelConfig
}

// NewRegistry creates a registry seeded with the given models. An empty
// slice seeds the defaults.
func NewRegistry(models []ModelConfig) *Registry {
	if len(models) == 0 {
		models = DefaultModels()
	}
	return &Registry{models: models}
}

// Refresh replaces the registry contents.
func (r *Registry) Refresh(models []ModelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = models
}

// All returns every registered model.
func (r *Registry) All() []ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelConfig, len(r.models))
	copy(out, r.models)
	return out
}

// Lookup finds a model by id.
func (r *Registry) Lookup(modelID string) (ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.models {
		if m.ModelID == modelID {
			return m, nil
		}
	}
	return ModelConfig{}, fmt.Errorf("unknown model: %s", modelID)
}

// Available returns the models whose provider credential is configured.
func (r *Registry) Available(creds Credentials) []ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ModelConfig
	for _, m := range r.models {
		if creds.Has(m.EnvKey) {
			out = append(out, m)
		}
	}
	return out
}
