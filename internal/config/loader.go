package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYHUB_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYHUB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYHUB_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.UserAgent, "POLYHUB_POLYMARKET_USER_AGENT")
	setDuration(&cfg.Polymarket.RequestTimeout, "POLYHUB_POLYMARKET_REQUEST_TIMEOUT")
	setInt(&cfg.Polymarket.MaxRetries, "POLYHUB_POLYMARKET_MAX_RETRIES")
	setDuration(&cfg.Polymarket.RetryBackoff, "POLYHUB_POLYMARKET_RETRY_BACKOFF")

	// ── Aggregator ──
	setInt(&cfg.Aggregator.EventsPageSize, "POLYHUB_AGGREGATOR_EVENTS_PAGE_SIZE")
	setInt(&cfg.Aggregator.EventsMaxPages, "POLYHUB_AGGREGATOR_EVENTS_MAX_PAGES")
	setInt(&cfg.Aggregator.DetailLimit, "POLYHUB_AGGREGATOR_DETAIL_LIMIT")
	setInt(&cfg.Aggregator.MarketsPageSize, "POLYHUB_AGGREGATOR_MARKETS_PAGE_SIZE")
	setInt(&cfg.Aggregator.MarketsMaxPages, "POLYHUB_AGGREGATOR_MARKETS_MAX_PAGES")
	setDuration(&cfg.Aggregator.PageDelay, "POLYHUB_AGGREGATOR_PAGE_DELAY")

	// ── Cache ──
	setDuration(&cfg.Cache.TTL, "POLYHUB_CACHE_TTL")

	// ── API ──
	setInt(&cfg.API.DefaultLimit, "POLYHUB_API_DEFAULT_LIMIT")
	setInt(&cfg.API.MaxLimit, "POLYHUB_API_MAX_LIMIT")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.RefreshInterval, "POLYHUB_PIPELINE_REFRESH_INTERVAL")
	setInt(&cfg.Pipeline.RefreshTarget, "POLYHUB_PIPELINE_REFRESH_TARGET")

	// ── Server ──
	setInt(&cfg.Server.Port, "POLYHUB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYHUB_SERVER_CORS_ORIGINS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYHUB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYHUB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYHUB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYHUB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYHUB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYHUB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYHUB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "POLYHUB_REDIS_KEY_PREFIX")
	setInt(&cfg.Redis.RateLimit, "POLYHUB_REDIS_RATE_LIMIT")
	setDuration(&cfg.Redis.RateWindow, "POLYHUB_REDIS_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYHUB_MODE")
	setStr(&cfg.LogLevel, "POLYHUB_LOG_LEVEL")
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
