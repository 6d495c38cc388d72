package yachtsql

import (
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config consolidates engine settings.
type Config struct {
	Parallel ParallelConfig `yaml:"parallel" json:"parallel"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ParallelConfig tunes the executor's worker fan-out.
type ParallelConfig struct {
	// Workers is the fixed pool size shared by parallel operators.
	Workers int `yaml:"workers" json:"workers"`
	// Threshold is the work-unit count (outer cardinality for probes,
	// left*right for nested loops) above which joins run in parallel.
	Threshold int `yaml:"threshold" json:"threshold"`
}

// SessionConfig holds per-session settings. MaxRows is loaded and defaulted
// but the session does not read it; query results are not capped.
type SessionConfig struct {
	MaxRows int `yaml:"maxRows" json:"maxRows"`
}

// LoggingConfig selects logger construction.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		Parallel: ParallelConfig{
			Workers:   runtime.NumCPU(),
			Threshold: 100_000,
		},
		Session: SessionConfig{
			MaxRows: 1_000_000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a YAML config file, overlaying the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Parallel.Workers <= 0 {
		cfg.Parallel.Workers = runtime.NumCPU()
	}
	if cfg.Parallel.Threshold <= 0 {
		cfg.Parallel.Threshold = DefaultConfig().Parallel.Threshold
	}
	return cfg, nil
}
