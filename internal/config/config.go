// Package config defines service configuration and how it is loaded.
//
// Values come from defaults (New), then an optional YAML file, then
// DEMONLIST_* environment variables; see Load.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the persistence backend: memory, file or sqlite.
	StorageDriver string `koanf:"storage_driver"`

	// StoragePath is the JSON document or SQLite database path.
	StoragePath string `koanf:"storage_path"`

	// RankPolicy resolves rank collisions on edit: swap or shift.
	RankPolicy string `koanf:"rank_policy"`

	// BasePoints and Decay parameterise points = base * decay^(rank-1).
	BasePoints float64 `koanf:"base_points"`
	Decay      float64 `koanf:"decay"`

	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// IdempotencySize bounds the cache of create request keys.
	IdempotencySize int `koanf:"idempotency_size"`

	// AdminUsername and AdminPasswordHash (bcrypt) enable admin login.
	AdminUsername     string `koanf:"admin_username"`
	AdminPasswordHash string `koanf:"admin_password_hash"`

	// JWTSecret signs admin tokens; TokenTTL is their lifetime.
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	// LoginRatePerMinute and LoginBurst limit login attempts per client IP.
	LoginRatePerMinute float64 `koanf:"login_rate_per_minute"`
	LoginBurst         int     `koanf:"login_burst"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsBuckets overrides the latency histogram buckets (milliseconds).
	MetricsBuckets []float64 `koanf:"metrics_buckets"`

	// MetricsLabels are constant labels attached to every metric, e.g. {env: prod}.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StorageDriver:       "file",
		StoragePath:         "data/levels.json",
		RankPolicy:          "swap",
		BasePoints:          150,
		Decay:               0.95,
		MaxLeaderboardLimit: 100,
		IdempotencySize:     10_000,
		TokenTTL:            12 * time.Hour,
		LoginRatePerMinute:  10,
		LoginBurst:          5,
		MetricsNamespace:    "demonlist",
		MetricsSubsystem:    "list",
	}
}

// Validate reports the first invalid value, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !oneOf(c.StorageDriver, "memory", "file", "sqlite"):
		return fmt.Errorf("%w: storage_driver %q must be memory, file or sqlite", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver != "memory" && strings.TrimSpace(c.StoragePath) == "":
		return fmt.Errorf("%w: storage_path is required for the %s driver", ErrInvalidConfig, c.StorageDriver)
	case !oneOf(c.RankPolicy, "swap", "shift"):
		return fmt.Errorf("%w: rank_policy %q must be swap or shift", ErrInvalidConfig, c.RankPolicy)
	case c.BasePoints <= 0:
		return fmt.Errorf("%w: base_points must be positive", ErrInvalidConfig)
	case c.Decay <= 0 || c.Decay >= 1:
		return fmt.Errorf("%w: decay must be in (0, 1)", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	case c.TokenTTL <= 0:
		return fmt.Errorf("%w: token_ttl must be positive", ErrInvalidConfig)
	case c.LoginRatePerMinute < 0 || c.LoginBurst < 0:
		return fmt.Errorf("%w: login limits must not be negative", ErrInvalidConfig)
	case c.AdminUsername != "" && c.JWTSecret == "":
		return fmt.Errorf("%w: jwt_secret is required when admin_username is set", ErrInvalidConfig)
	case strings.TrimSpace(c.MetricsNamespace) == "":
		return fmt.Errorf("%w: metrics_namespace must not be empty", ErrInvalidConfig)
	case !slices.IsSorted(c.MetricsBuckets):
		return fmt.Errorf("%w: metrics_buckets must be ascending", ErrInvalidConfig)
	}
	return nil
}

// AdminEnabled reports whether admin login is configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPasswordHash != "" && c.JWTSecret != ""
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
