// Package config defines the top-level configuration for the polyhub service
// and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYHUB_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Aggregator AggregatorConfig `toml:"aggregator"`
	Cache      CacheConfig      `toml:"cache"`
	API        APIConfig        `toml:"api"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Redis      RedisConfig      `toml:"redis"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the Gamma API endpoint and client behaviour.
type PolymarketConfig struct {
	GammaHost      string   `toml:"gamma_host"`
	UserAgent      string   `toml:"user_agent"`
	RequestTimeout duration `toml:"request_timeout"`
	MaxRetries     int      `toml:"max_retries"`
	RetryBackoff   duration `toml:"retry_backoff"`
}

// AggregatorConfig bounds how much of the upstream one aggregation reads.
type AggregatorConfig struct {
	EventsPageSize  int      `toml:"events_page_size"`
	EventsMaxPages  int      `toml:"events_max_pages"`
	DetailLimit     int      `toml:"detail_limit"`
	MarketsPageSize int      `toml:"markets_page_size"`
	MarketsMaxPages int      `toml:"markets_max_pages"`
	PageDelay       duration `toml:"page_delay"`
}

// CacheConfig holds snapshot cache parameters.
type CacheConfig struct {
	TTL duration `toml:"ttl"`
}

// APIConfig holds inbound request bounds.
type APIConfig struct {
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

// PipelineConfig holds background refresh parameters (full mode only).
type PipelineConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	// RefreshTarget is the snapshot size kept warm; 0 uses api.default_limit.
	RefreshTarget int `toml:"refresh_target"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// RedisConfig holds Redis connection parameters for the optional inbound
// rate limiter.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
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
		Polymarket: PolymarketConfig{
			GammaHost:      "https://gamma-api.polymarket.com",
			UserAgent:      "PolyHub/1.0",
			RequestTimeout: duration{8 * time.Second},
			MaxRetries:     2,
			RetryBackoff:   duration{500 * time.Millisecond},
		},
		Aggregator: AggregatorConfig{
			EventsPageSize:  100,
			EventsMaxPages:  1,
			DetailLimit:     40,
			MarketsPageSize: 100,
			MarketsMaxPages: 5,
			PageDelay:       duration{150 * time.Millisecond},
		},
		Cache: CacheConfig{
			TTL: duration{60 * time.Second},
		},
		API: APIConfig{
			DefaultLimit: 100,
			MaxLimit:     300,
		},
		Pipeline: PipelineConfig{
			RefreshInterval: duration{60 * time.Second},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "polyhub:",
			RateLimit:  120,
			RateWindow: duration{time.Minute},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// RefreshTarget returns the snapshot size the background refresher keeps warm.
func (c *Config) RefreshTarget() int {
	if c.Pipeline.RefreshTarget > 0 {
		return c.Pipeline.RefreshTarget
	}
	return c.API.DefaultLimit
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"full":   true,
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

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket
	if u, err := url.Parse(c.Polymarket.GammaHost); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("polymarket: gamma_host must be an absolute URL, got %q", c.Polymarket.GammaHost))
	}
	if c.Polymarket.RequestTimeout.Duration <= 0 {
		errs = append(errs, "polymarket: request_timeout must be > 0")
	}
	if c.Polymarket.MaxRetries < 0 {
		errs = append(errs, "polymarket: max_retries must be >= 0")
	}
	if c.Polymarket.RetryBackoff.Duration < 0 {
		errs = append(errs, "polymarket: retry_backoff must be >= 0")
	}

	// Aggregator
	if c.Aggregator.EventsPageSize < 1 {
		errs = append(errs, "aggregator: events_page_size must be >= 1")
	}
	if c.Aggregator.EventsMaxPages < 0 {
		errs = append(errs, "aggregator: events_max_pages must be >= 0")
	}
	if c.Aggregator.DetailLimit < 0 {
		errs = append(errs, "aggregator: detail_limit must be >= 0")
	}
	if c.Aggregator.MarketsPageSize < 1 {
		errs = append(errs, "aggregator: markets_page_size must be >= 1")
	}
	if c.Aggregator.MarketsMaxPages < 0 {
		errs = append(errs, "aggregator: markets_max_pages must be >= 0")
	}
	if c.Aggregator.PageDelay.Duration < 0 {
		errs = append(errs, "aggregator: page_delay must be >= 0")
	}

	// Cache
	if c.Cache.TTL.Duration <= 0 {
		errs = append(errs, "cache: ttl must be > 0")
	}

	// API
	if c.API.MaxLimit < 1 {
		errs = append(errs, "api: max_limit must be >= 1")
	}
	if c.API.DefaultLimit < 1 || c.API.DefaultLimit > c.API.MaxLimit {
		errs = append(errs, fmt.Sprintf("api: default_limit must be between 1 and max_limit (%d)", c.API.MaxLimit))
	}

	// Pipeline
	if strings.EqualFold(c.Mode, "full") && c.Pipeline.RefreshInterval.Duration <= 0 {
		errs = append(errs, "pipeline: refresh_interval must be > 0 in full mode")
	}
	if c.Pipeline.RefreshTarget < 0 || c.Pipeline.RefreshTarget > c.API.MaxLimit {
		errs = append(errs, fmt.Sprintf("pipeline: refresh_target must be between 0 and api.max_limit (%d)", c.API.MaxLimit))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.RateLimit < 1 {
			errs = append(errs, "redis: rate_limit must be >= 1")
		}
		if c.Redis.RateWindow.Duration <= 0 {
			errs = append(errs, "redis: rate_window must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
