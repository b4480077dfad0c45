package config

import "net/url"

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log: the Redis
// password is masked and any credentials embedded in the Gamma host URL are
// stripped. Slices are copied so the result shares no state with cfg.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	if out.Redis.Password != "" {
		out.Redis.Password = redacted
	}
	if u, err := url.Parse(out.Polymarket.GammaHost); err == nil && u.User != nil {
		out.Polymarket.GammaHost = u.Redacted()
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	return out
}
