package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rendergrid/rendergrid/pkg/types"
)

// Duration is a time.Duration that unmarshals from YAML strings like "2h"
// or "30s", or from plain integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level daemon configuration, loadable from YAML.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Conflict  ConflictConfig  `yaml:"conflict"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type SchedulerConfig struct {
	// DeadlineSafetyMargin is added to remaining work when judging whether a
	// deadline is at risk.
	DeadlineSafetyMargin Duration `yaml:"deadline_safety_margin"`

	// DependencyProgressThreshold is the RUNNING-dependency progress percent
	// at which a dependency counts as satisfied.
	DependencyProgressThreshold float64 `yaml:"dependency_progress_threshold"`

	EnablePreemption bool `yaml:"enable_preemption"`

	// Interval between scheduling passes when running as a daemon.
	Interval Duration `yaml:"interval"`
}

type ConflictConfig struct {
	// Strategy selects the conflict resolution policy:
	// first_come_first_served, priority_based, or preemption.
	Strategy string `yaml:"strategy"`
}

type AuditConfig struct {
	// JournalPath enables the persistent bbolt audit journal when non-empty.
	JournalPath string `yaml:"journal_path"`
}

type MetricsConfig struct {
	// ListenAddr serves Prometheus metrics when non-empty, e.g. ":9090".
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
		Scheduler: SchedulerConfig{
			DeadlineSafetyMargin:        Duration(2 * time.Hour),
			DependencyProgressThreshold: 50.0,
			EnablePreemption:            true,
			Interval:                    Duration(30 * time.Second),
		},
		Conflict: ConflictConfig{
			Strategy: string(types.StrategyPriorityBased),
		},
		Audit: AuditConfig{},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Scheduler.DeadlineSafetyMargin < 0 {
		return fmt.Errorf("scheduler.deadline_safety_margin must not be negative")
	}
	if c.Scheduler.DependencyProgressThreshold < 0 || c.Scheduler.DependencyProgressThreshold > 100 {
		return fmt.Errorf("scheduler.dependency_progress_threshold must be within [0, 100]")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}

	switch types.ResolutionStrategy(c.Conflict.Strategy) {
	case types.StrategyFirstComeFirstServed, types.StrategyPriorityBased, types.StrategyPreemption:
	default:
		return fmt.Errorf("conflict.strategy %q is not a known strategy", c.Conflict.Strategy)
	}
	return nil
}

// Strategy returns the configured conflict resolution strategy.
func (c *Config) Strategy() types.ResolutionStrategy {
	return types.ResolutionStrategy(c.Conflict.Strategy)
}
