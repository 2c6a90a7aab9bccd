package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	Observability ObservabilityConfig `yaml:"observability"`
	Rating        RatingConfig        `yaml:"rating"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// ObservabilityConfig holds configuration for observability components.
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
}

// RatingConfig tunes the rating pipeline.
type RatingConfig struct {
	// RetryBudget is the number of extra attempts a rating job gets on
	// transient storage faults.
	RetryBudget int `yaml:"retry_budget"`
	// RetryDelay is the pause between those attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// LeaderboardRefreshInterval is how often the known rating types are
	// reloaded from storage. Zero disables periodic refresh.
	LeaderboardRefreshInterval time.Duration `yaml:"leaderboard_refresh_interval"`
	// DrainTimeout bounds the graceful shutdown drain.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
	// InitialMean and InitialDeviation form the flat default prior for
	// players with no rating on any leaderboard.
	InitialMean      float64 `yaml:"initial_mean"`
	InitialDeviation float64 `yaml:"initial_deviation"`
}

// LoadConfig loads the configuration from a YAML file, falling back to
// environment variables when the file is absent.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	applyEnvOverrides(&cfg)
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("no config file found and DATABASE_URL not set")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("RATING_RETRY_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Rating.RetryBudget = n
		}
	}
	if v := os.Getenv("RATING_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Rating.RetryDelay = d
		}
	}
	if v := os.Getenv("RATING_LEADERBOARD_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Rating.LeaderboardRefreshInterval = d
		}
	}
	if v := os.Getenv("RATING_DRAIN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Rating.DrainTimeout = d
		}
	}
	if v := os.Getenv("RATING_INITIAL_MEAN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Rating.InitialMean = f
		}
	}
	if v := os.Getenv("RATING_INITIAL_DEVIATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Rating.InitialDeviation = f
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Rating.RetryBudget == 0 {
		cfg.Rating.RetryBudget = 3
	}
	if cfg.Rating.RetryDelay == 0 {
		cfg.Rating.RetryDelay = 250 * time.Millisecond
	}
	if cfg.Rating.LeaderboardRefreshInterval == 0 {
		cfg.Rating.LeaderboardRefreshInterval = 10 * time.Minute
	}
	if cfg.Rating.DrainTimeout == 0 {
		cfg.Rating.DrainTimeout = 30 * time.Second
	}
	if cfg.Rating.InitialMean == 0 {
		cfg.Rating.InitialMean = 1500
	}
	if cfg.Rating.InitialDeviation == 0 {
		cfg.Rating.InitialDeviation = 500
	}
	if cfg.Observability.MetricsAddress == "" {
		cfg.Observability.MetricsAddress = ":9090"
	}
}
