package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
)

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Validate(DefaultConfig()))
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: "data_dir",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.DatabasePath = "" },
			wantErr: "database_path",
		},
		{
			name:    "missing simulator model",
			mutate:  func(c *Config) { c.Simulator.Model = "" },
			wantErr: "simulator",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Run.Concurrency = -1 },
			wantErr: "concurrency",
		},
		{
			name:    "negative session timeout",
			mutate:  func(c *Config) { c.Run.SessionTimeoutMinutes = -5 },
			wantErr: "session_timeout_minutes",
		},
		{
			name:    "bad restart policy",
			mutate:  func(c *Config) { c.Run.RestartPolicy = "always" },
			wantErr: "restart_policy",
		},
		{
			name:    "negative poll attempts",
			mutate:  func(c *Config) { c.Scorer.MaxPollAttempts = -1 },
			wantErr: "scorer poll settings",
		},
		{
			name: "model without id",
			mutate: func(c *Config) {
				c.Models = []llm.ModelConfig{{Provider: "openai", APIModel: "gpt-4o"}}
			},
			wantErr: "model_id",
		},
		{
			name: "model without provider",
			mutate: func(c *Config) {
				c.Models = []llm.ModelConfig{{ModelID: "x", APIModel: "x-v1"}}
			},
			wantErr: "provider",
		},
		{
			name: "model without api model",
			mutate: func(c *Config) {
				c.Models = []llm.ModelConfig{{ModelID: "x", Provider: "openai"}}
			},
			wantErr: "api_model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, Validate(cfg), tt.wantErr)
		})
	}

	t.Run("empty restart policy allowed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Run.RestartPolicy = ""
		assert.NoError(t, Validate(cfg))
	})
}
