package config

import (
	"time"
)

// Config is the root configuration for the Humanbound engine.
type Config struct {
	Core     CoreConfig     `mapstructure:"core" yaml:"core" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store" validate:"required"`
	Judge    JudgeConfig    `mapstructure:"judge" yaml:"judge"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Scoring  ScoringConfig  `mapstructure:"scoring" yaml:"scoring"`
	Adaptive AdaptiveConfig `mapstructure:"adaptive" yaml:"adaptive"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
}

// CoreConfig contains core engine settings.
type CoreConfig struct {
	HomeDir       string        `mapstructure:"home_dir" yaml:"home_dir"`
	DataDir       string        `mapstructure:"data_dir" yaml:"data_dir"`
	ParallelLimit int           `mapstructure:"parallel_limit" yaml:"parallel_limit" validate:"min=1,max=100"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Debug         bool          `mapstructure:"debug" yaml:"debug"`
}

// StoreConfig contains finding and posture store configuration.
type StoreConfig struct {
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=100"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	WALMode        bool          `mapstructure:"wal_mode" yaml:"wal_mode"`
}

// JudgeConfig contains judge LLM configuration.
type JudgeConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`
}

// RetryConfig controls endpoint retry behavior.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	RatePerSecond  float64       `mapstructure:"rate_per_second" yaml:"rate_per_second" validate:"min=0"`
}

// ScoringConfig contains posture score weights.
type ScoringConfig struct {
	CriticalWeight  float64 `mapstructure:"critical_weight" yaml:"critical_weight"`
	HighWeight      float64 `mapstructure:"high_weight" yaml:"high_weight"`
	MediumWeight    float64 `mapstructure:"medium_weight" yaml:"medium_weight"`
	LowWeight       float64 `mapstructure:"low_weight" yaml:"low_weight"`
	InfoWeight      float64 `mapstructure:"info_weight" yaml:"info_weight"`
	CoverageBonus   float64 `mapstructure:"coverage_bonus" yaml:"coverage_bonus"`
	ResilienceBonus float64 `mapstructure:"resilience_bonus" yaml:"resilience_bonus"`
}

// AdaptiveConfig controls the adaptive prompt search.
type AdaptiveConfig struct {
	PopulationSize   int     `mapstructure:"population_size" yaml:"population_size" validate:"min=1,max=50"`
	MaxGenerations   int     `mapstructure:"max_generations" yaml:"max_generations" validate:"min=1,max=20"`
	TopK             int     `mapstructure:"top_k" yaml:"top_k" validate:"min=1"`
	MutationRate     float64 `mapstructure:"mutation_rate" yaml:"mutation_rate" validate:"min=0,max=1"`
	SuccessThreshold float64 `mapstructure:"success_threshold" yaml:"success_threshold" validate:"min=0,max=1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}
