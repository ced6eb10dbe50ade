package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a config loader. An empty path means the default
// location (./saggiatore.json).
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load reads the config file, applies SAGGIATORE_* environment overrides
// and fills defaults. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("SAGGIATORE")
	v.AutomaticEnv()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Environment credentials also reach the scorer config.
	if key := os.Getenv("SCORER_API_KEY"); key != "" && cfg.Scorer.APIKey == "" {
		cfg.Scorer.APIKey = key
	}
	if url := os.Getenv("SCORER_BASE_URL"); url != "" && cfg.Scorer.BaseURL == "" {
		cfg.Scorer.BaseURL = url
	}

	if cfg.Logging.File == "" && cfg.DatabasePath != "" {
		cfg.Logging.File = filepath.Join(filepath.Dir(cfg.DatabasePath), "saggiatore.log")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the config path.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("data_dir", cfg.DataDir)
	v.Set("database_path", cfg.DatabasePath)
	v.Set("models", cfg.Models)
	v.Set("simulator", cfg.Simulator)
	v.Set("run", cfg.Run)
	v.Set("scorer", cfg.Scorer)
	v.Set("events", cfg.Events)
	v.Set("logging", cfg.Logging)
	v.Set("watch_data", cfg.WatchData)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the resolved config file path.
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return "saggiatore.json"
}

// Load is a convenience wrapper around NewLoader(path).Load().
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
