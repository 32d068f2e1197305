// Package config defines the top-level configuration for the option pricer
// and provides validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/lasource18/options-price-calculator/internal/daycount"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OPTPRICER_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Engine   EngineConfig   `toml:"engine"`
	DayCount DayCountConfig `toml:"daycount"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
	TrustedProxies  []string `toml:"trusted_proxies"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
}

// RedisConfig holds Redis connection parameters. With Enabled false the
// service runs without the result cache, rate limiter and event stream.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// EngineConfig bounds and defaults the pricing engines. A zero maximum means
// unlimited.
type EngineConfig struct {
	DefaultAssetSteps int     `toml:"default_asset_steps"`
	MaxAssetSteps     int     `toml:"max_asset_steps"`
	MaxTimeSteps      int     `toml:"max_time_steps"`
	DefaultTimesteps  int     `toml:"default_timesteps"`
	DefaultSims       int     `toml:"default_sims"`
	MaxPathCells      int     `toml:"max_path_cells"`
	DefaultSeed       uint64  `toml:"default_seed"`
	IVTolerance       float64 `toml:"iv_tolerance"`
	IVMaxIterations   int     `toml:"iv_max_iterations"`
}

// DayCountConfig selects how expiry dates become years to expiry.
type DayCountConfig struct {
	Convention string `toml:"convention"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
			ReadTimeout:     duration{15 * time.Second},
			WriteTimeout:    duration{60 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			CacheTTL:   duration{10 * time.Minute},
		},
		Engine: EngineConfig{
			DefaultAssetSteps: 20,
			MaxAssetSteps:     400,
			MaxTimeSteps:      200_000,
			DefaultTimesteps:  252,
			DefaultSims:       10_000,
			MaxPathCells:      25_000_000,
			DefaultSeed:       2024,
			IVTolerance:       1e-7,
			IVMaxIterations:   1000,
		},
		DayCount: DayCountConfig{
			Convention: string(daycount.Business252),
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
		errs = append(errs, "server: rate_limit_window must be positive when rate_limit is set")
	}
	for _, p := range c.Server.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			errs = append(errs, fmt.Sprintf("server: trusted_proxies entry %q is neither an IP nor a CIDR", p))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.CacheTTL.Duration < 0 {
			errs = append(errs, "redis: cache_ttl must be >= 0")
		}
	}

	// Engine
	e := c.Engine
	if e.DefaultAssetSteps < 2 || e.DefaultAssetSteps%2 != 0 {
		errs = append(errs, fmt.Sprintf("engine: default_asset_steps must be an even number >= 2, got %d", e.DefaultAssetSteps))
	}
	if e.MaxAssetSteps < 0 || e.MaxTimeSteps < 0 || e.MaxPathCells < 0 {
		errs = append(errs, "engine: limits must be >= 0")
	}
	if e.MaxAssetSteps > 0 && e.DefaultAssetSteps > e.MaxAssetSteps {
		errs = append(errs, "engine: default_asset_steps must not exceed max_asset_steps")
	}
	if e.DefaultTimesteps < 1 {
		errs = append(errs, "engine: default_timesteps must be >= 1")
	}
	if e.DefaultSims < 1 {
		errs = append(errs, "engine: default_sims must be >= 1")
	}
	if e.MaxPathCells > 0 && e.DefaultTimesteps*e.DefaultSims > e.MaxPathCells {
		errs = append(errs, "engine: default_timesteps * default_sims must not exceed max_path_cells")
	}
	if e.IVTolerance <= 0 {
		errs = append(errs, "engine: iv_tolerance must be > 0")
	}
	if e.IVMaxIterations < 1 {
		errs = append(errs, "engine: iv_max_iterations must be >= 1")
	}

	// Day count
	if _, err := daycount.ParseConvention(c.DayCount.Convention); err != nil {
		errs = append(errs, fmt.Sprintf("daycount: unknown convention %q (valid: business252, calendar365)", c.DayCount.Convention))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
