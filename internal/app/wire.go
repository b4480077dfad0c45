package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyhub/internal/cache/memory"
	"github.com/alanyoungcy/polyhub/internal/cache/redis"
	"github.com/alanyoungcy/polyhub/internal/config"
	"github.com/alanyoungcy/polyhub/internal/domain"
	"github.com/alanyoungcy/polyhub/internal/normalizer"
	"github.com/alanyoungcy/polyhub/internal/pipeline"
	"github.com/alanyoungcy/polyhub/internal/platform/polymarket"
	"github.com/alanyoungcy/polyhub/internal/service"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Gamma      *polymarket.GammaClient
	Aggregator *pipeline.Aggregator
	Cache      *memory.SnapshotCache
	Markets    *service.MarketService

	// RateLimiter is nil unless redis.enabled is set.
	RateLimiter domain.RateLimiter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Upstream ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost,
		polymarket.WithTimeout(cfg.Polymarket.RequestTimeout.Duration),
		polymarket.WithMaxRetries(cfg.Polymarket.MaxRetries),
		polymarket.WithRetryBackoff(cfg.Polymarket.RetryBackoff.Duration),
		polymarket.WithUserAgent(cfg.Polymarket.UserAgent),
		polymarket.WithLogger(logger),
	)

	// --- Aggregation ---
	deps.Aggregator = pipeline.NewAggregator(deps.Gamma, normalizer.New(), pipeline.Settings{
		EventsPageSize:  cfg.Aggregator.EventsPageSize,
		EventsMaxPages:  cfg.Aggregator.EventsMaxPages,
		DetailLimit:     cfg.Aggregator.DetailLimit,
		MarketsPageSize: cfg.Aggregator.MarketsPageSize,
		MarketsMaxPages: cfg.Aggregator.MarketsMaxPages,
		PageDelay:       cfg.Aggregator.PageDelay.Duration,
	}, logger)

	deps.Cache = memory.NewSnapshotCache(cfg.Cache.TTL.Duration)
	deps.Markets = service.NewMarketService(deps.Aggregator, deps.Cache, logger)

	// --- Redis (optional inbound rate limiting) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.RateLimiter = redis.NewRateLimiter(redisClient)

		logger.InfoContext(ctx, "wire: redis rate limiter enabled",
			slog.String("addr", cfg.Redis.Addr),
			slog.Int("limit", cfg.Redis.RateLimit),
			slog.Duration("window", cfg.Redis.RateWindow.Duration),
		)
	}

	return deps, cleanup, nil
}
