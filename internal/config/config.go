package config

import (
	"os"
	"strconv"

	"phonostat/internal/errors"
)

// Config represents the complete engine configuration. Every statistical
// default (floors, iteration counts, correction method) lives here so that a
// run can be reproduced from recorded configuration alone.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds the optional artifact-cache database settings. The
// engine runs fully in-memory when no URL is configured.
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// EngineConfig holds statistical defaults and extractor settings
type EngineConfig struct {
	WeightsFile          string // optional JSON weights override; empty = built-in v1 weights
	MinSampleCorrelation int
	MinGroupSize         int
	PermutationShuffles  int
	BootstrapResamples   int
	CVFolds              int
	OutlierZThreshold    float64
	Alpha                float64
	CILevel              float64
	CorrectionMethod     string
	Workers              int // 0 = NumCPU
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Engine: EngineConfig{
			WeightsFile:          getEnvOrDefault("WEIGHTS_FILE", ""),
			MinSampleCorrelation: getEnvIntOrDefault("MIN_SAMPLE_CORRELATION", 10),
			MinGroupSize:         getEnvIntOrDefault("MIN_GROUP_SIZE", 5),
			PermutationShuffles:  getEnvIntOrDefault("PERMUTATION_SHUFFLES", 10000),
			BootstrapResamples:   getEnvIntOrDefault("BOOTSTRAP_RESAMPLES", 2000),
			CVFolds:              getEnvIntOrDefault("CV_FOLDS", 5),
			OutlierZThreshold:    getEnvFloatOrDefault("OUTLIER_Z_THRESHOLD", 3.0),
			Alpha:                getEnvFloatOrDefault("ALPHA", 0.05),
			CILevel:              getEnvFloatOrDefault("CI_LEVEL", 0.95),
			CorrectionMethod:     getEnvOrDefault("CORRECTION_METHOD", "fdr_bh"),
			Workers:              getEnvIntOrDefault("WORKERS", 0),
		},
	}
	cfg.Database.Enabled = cfg.Database.URL != ""

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Engine.MinSampleCorrelation < 3 {
		return errors.ConfigInvalid("MIN_SAMPLE_CORRELATION must be >= 3")
	}
	if cfg.Engine.MinGroupSize < 2 {
		return errors.ConfigInvalid("MIN_GROUP_SIZE must be >= 2")
	}
	if cfg.Engine.PermutationShuffles < 100 {
		return errors.ConfigInvalid("PERMUTATION_SHUFFLES must be >= 100")
	}
	if cfg.Engine.BootstrapResamples < 100 {
		return errors.ConfigInvalid("BOOTSTRAP_RESAMPLES must be >= 100")
	}
	if cfg.Engine.CVFolds < 2 {
		return errors.ConfigInvalid("CV_FOLDS must be >= 2")
	}
	if cfg.Engine.Alpha <= 0 || cfg.Engine.Alpha >= 1 {
		return errors.ConfigInvalid("ALPHA must be in (0, 1)")
	}
	if cfg.Engine.CILevel <= 0 || cfg.Engine.CILevel >= 1 {
		return errors.ConfigInvalid("CI_LEVEL must be in (0, 1)")
	}
	switch cfg.Engine.CorrectionMethod {
	case "bonferroni", "fdr_bh":
	default:
		return errors.ConfigInvalid("CORRECTION_METHOD must be bonferroni or fdr_bh")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
