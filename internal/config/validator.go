package config

import (
	"fmt"
)

// Validate rejects configurations the orchestrator cannot run with.
func Validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if cfg.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}
	if cfg.Simulator.Provider == "" || cfg.Simulator.Model == "" {
		return fmt.Errorf("simulator provider and model must be set")
	}
	if cfg.Run.Concurrency < 0 {
		return fmt.Errorf("run.concurrency cannot be negative")
	}
	if cfg.Run.SessionTimeoutMinutes < 0 {
		return fmt.Errorf("run.session_timeout_minutes cannot be negative")
	}
	switch cfg.Run.RestartPolicy {
	case "", "skip", "duplicate":
	default:
		return fmt.Errorf("run.restart_policy must be skip or duplicate, got %q", cfg.Run.RestartPolicy)
	}
	if cfg.Scorer.MaxPollAttempts < 0 || cfg.Scorer.PollIntervalSeconds < 0 {
		return fmt.Errorf("scorer poll settings cannot be negative")
	}

	for i, m := range cfg.Models {
		if m.ModelID == "" {
			return fmt.Errorf("models[%d]: model_id cannot be empty", i)
		}
		if m.Provider == "" {
			return fmt.Errorf("models[%d]: provider cannot be empty", i)
		}
		if m.APIModel == "" {
			return fmt.Errorf("models[%d]: api_model cannot be empty", i)
		}
	}
	return nil
}
