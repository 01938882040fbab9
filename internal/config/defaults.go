package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir:       homeDir,
			DataDir:       filepath.Join(homeDir, "data"),
			ParallelLimit: 10,
			Timeout:       5 * time.Minute,
			Debug:         false,
		},
		Store: StoreConfig{
			Path:           filepath.Join(homeDir, "humanbound.db"),
			MaxConnections: 10,
			Timeout:        30 * time.Second,
			WALMode:        true,
		},
		Judge: JudgeConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.0,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 30 * time.Second,
			MaxBackoff:     300 * time.Second,
			RatePerSecond:  2.0,
		},
		Scoring: ScoringConfig{
			CriticalWeight:  25,
			HighWeight:      15,
			MediumWeight:    8,
			LowWeight:       3,
			InfoWeight:      1,
			CoverageBonus:   2,
			ResilienceBonus: 3,
		},
		Adaptive: AdaptiveConfig{
			PopulationSize:   6,
			MaxGenerations:   5,
			TopK:             2,
			MutationRate:     0.5,
			SuccessThreshold: 0.85,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "",
		},
	}
}

// getDefaultHomeDir returns the default Humanbound home directory.
// It uses ~/.humanbound or falls back to a temporary directory if user home
// cannot be determined.
func getDefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".humanbound")
	}
	return filepath.Join(userHome, ".humanbound")
}
