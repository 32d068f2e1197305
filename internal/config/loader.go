package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OPTPRICER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OPTPRICER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "OPTPRICER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OPTPRICER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OPTPRICER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "OPTPRICER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "OPTPRICER_SERVER_RATE_LIMIT_WINDOW")
	setStringSlice(&cfg.Server.TrustedProxies, "OPTPRICER_SERVER_TRUSTED_PROXIES")
	setDuration(&cfg.Server.ReadTimeout, "OPTPRICER_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "OPTPRICER_SERVER_WRITE_TIMEOUT")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "OPTPRICER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "OPTPRICER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPTPRICER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPTPRICER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OPTPRICER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OPTPRICER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OPTPRICER_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "OPTPRICER_REDIS_CACHE_TTL")

	// ── Engine ──
	setInt(&cfg.Engine.DefaultAssetSteps, "OPTPRICER_ENGINE_DEFAULT_ASSET_STEPS")
	setInt(&cfg.Engine.MaxAssetSteps, "OPTPRICER_ENGINE_MAX_ASSET_STEPS")
	setInt(&cfg.Engine.MaxTimeSteps, "OPTPRICER_ENGINE_MAX_TIME_STEPS")
	setInt(&cfg.Engine.DefaultTimesteps, "OPTPRICER_ENGINE_DEFAULT_TIMESTEPS")
	setInt(&cfg.Engine.DefaultSims, "OPTPRICER_ENGINE_DEFAULT_SIMS")
	setInt(&cfg.Engine.MaxPathCells, "OPTPRICER_ENGINE_MAX_PATH_CELLS")
	setUint64(&cfg.Engine.DefaultSeed, "OPTPRICER_ENGINE_DEFAULT_SEED")
	setFloat64(&cfg.Engine.IVTolerance, "OPTPRICER_ENGINE_IV_TOLERANCE")
	setInt(&cfg.Engine.IVMaxIterations, "OPTPRICER_ENGINE_IV_MAX_ITERATIONS")

	// ── Day count ──
	setStr(&cfg.DayCount.Convention, "OPTPRICER_DAYCOUNT_CONVENTION")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "OPTPRICER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
