// Package config defines the orchestrator configuration and its loader.
package config

import (
	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
)

// Config is the main configuration.
type Config struct {
	// DataDir holds the seed JSON files (personas, tools, scenarios).
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// DatabasePath is the sqlite database location.
	DatabasePath string `json:"database_path" mapstructure:"database_path"`

	// Models overrides the built-in model registry when non-empty.
	Models []llm.ModelConfig `json:"models" mapstructure:"models"`

	// Simulator names the cheap model used for the persona and tool
	// simulators.
	Simulator SimulatorConfig `json:"simulator" mapstructure:"simulator"`

	Run     RunConfig     `json:"run" mapstructure:"run"`
	Scorer  ScorerConfig  `json:"scorer" mapstructure:"scorer"`
	Events  EventsConfig  `json:"events" mapstructure:"events"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// WatchData reloads the catalog when the seed files change.
	WatchData bool `json:"watch_data" mapstructure:"watch_data"`
}

// SimulatorConfig selects the simulator model.
type SimulatorConfig struct {
	Provider string `json:"provider" mapstructure:"provider"`
	Model    string `json:"model" mapstructure:"model"`
}

// RunConfig holds batch execution settings.
type RunConfig struct {
	Concurrency           int    `json:"concurrency" mapstructure:"concurrency"`
	SessionTimeoutMinutes int    `json:"session_timeout_minutes" mapstructure:"session_timeout_minutes"`
	RestartPolicy         string `json:"restart_policy" mapstructure:"restart_policy"` // skip, duplicate
	MaxToolIterations     int    `json:"max_tool_iterations" mapstructure:"max_tool_iterations"`
	ReconcileSchedule     string `json:"reconcile_schedule" mapstructure:"reconcile_schedule"` // cron, empty disables
}

// ScorerConfig holds external scorer settings. An empty base URL or API key
// means the simulated fallback scorer handles everything.
type ScorerConfig struct {
	BaseURL             string `json:"base_url" mapstructure:"base_url"`
	APIKey              string `json:"api_key" mapstructure:"api_key"`
	Project             string `json:"project" mapstructure:"project"`
	MaxPollAttempts     int    `json:"max_poll_attempts" mapstructure:"max_poll_attempts"`
	PollIntervalSeconds int    `json:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
}

// EventsConfig holds websocket fan-out settings.
type EventsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		DataDir:      "data",
		DatabasePath: "saggiatore.db",
		Simulator: SimulatorConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Run: RunConfig{
			Concurrency:           3,
			SessionTimeoutMinutes: 10,
			RestartPolicy:         "duplicate",
			MaxToolIterations:     5,
		},
		Scorer: ScorerConfig{
			Project:             "saggiatore",
			MaxPollAttempts:     12,
			PollIntervalSeconds: 15,
		},
		Events: EventsConfig{
			Addr: "127.0.0.1:8787",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
