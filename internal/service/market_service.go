// Package service orchestrates cache lookups, aggregation and the response
// policy for the market listing routes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

// Aggregator produces the canonical merged list for a target size.
type Aggregator interface {
	Aggregate(ctx context.Context, target int) ([]domain.Market, error)
}

// Source tells the client where the returned data came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceLive     Source = "live"
	SourceStale    Source = "stale-cache"
	SourceFallback Source = "fallback"
)

// Request is one listing request after query parsing.
type Request struct {
	Type    ListType
	Limit   int
	Refresh bool
}

// Response is the listing envelope returned to clients.
type Response struct {
	Success   bool            `json:"success"`
	Data      []domain.Market `json:"data"`
	Count     int             `json:"count"`
	Timestamp string          `json:"timestamp"`
	Source    Source          `json:"source"`
	Cached    bool            `json:"cached"`
	Warning   string          `json:"warning,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// CacheStatus summarizes the snapshot slot for health reporting.
type CacheStatus struct {
	Populated  bool    `json:"populated"`
	Stale      bool    `json:"stale"`
	AgeSeconds float64 `json:"age_seconds"`
	Count      int     `json:"count"`
}

// MarketService answers listing requests from the snapshot cache, running an
// aggregation on a miss and degrading to the last snapshot on failure.
type MarketService struct {
	agg    Aggregator
	cache  domain.SnapshotCache
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a MarketService.
type Option func(*MarketService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *MarketService) { s.now = now }
}

// NewMarketService creates a MarketService.
func NewMarketService(agg Aggregator, cache domain.SnapshotCache, logger *slog.Logger, opts ...Option) *MarketService {
	s := &MarketService{
		agg:    agg,
		cache:  cache,
		now:    time.Now,
		logger: logger.With(slog.String("component", "market_service")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List serves a listing request. It never returns an error: upstream
// failures are reported in the envelope.
func (s *MarketService) List(ctx context.Context, req Request) Response {
	key := domain.SnapshotKey{Target: req.Limit}

	if !req.Refresh {
		if snap, expired, ok := s.cache.Get(key, s.now()); ok && !expired {
			return s.respond(Filter(snap.Markets, req.Type, req.Limit), SourceCache, true)
		}
	}

	markets, err := s.aggregate(ctx, req.Limit)
	if err == nil {
		return s.respond(Filter(markets, req.Type, req.Limit), SourceLive, false)
	}

	if last, ok := s.cache.Last(); ok {
		s.logger.WarnContext(ctx, "serving stale snapshot",
			slog.String("error", err.Error()),
			slog.Duration("age", last.Age(s.now())),
		)
		resp := s.respond(Filter(last.Markets, req.Type, req.Limit), SourceStale, true)
		resp.Warning = "Upstream error: " + err.Error()
		return resp
	}

	s.logger.ErrorContext(ctx, "aggregation failed with no snapshot",
		slog.String("error", err.Error()),
	)
	resp := s.respond(nil, SourceFallback, false)
	resp.Error = err.Error()
	return resp
}

// Get looks a listing up by id in the current snapshot, aggregating first
// when the cache is empty.
func (s *MarketService) Get(ctx context.Context, id string, target int) (domain.Market, error) {
	snap, ok := s.cache.Last()
	if !ok {
		if _, err := s.aggregate(ctx, target); err != nil {
			return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
		}
		snap, _ = s.cache.Last()
	}

	for _, m := range snap.Markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, domain.ErrNotFound)
}

// Refresh rebuilds the snapshot for target regardless of cache state.
func (s *MarketService) Refresh(ctx context.Context, target int) error {
	if _, err := s.aggregate(ctx, target); err != nil {
		return fmt.Errorf("market_service: refresh: %w", err)
	}
	return nil
}

// CacheStatus reports the state of the snapshot slot.
func (s *MarketService) CacheStatus() CacheStatus {
	now := s.now()
	snap, ok := s.cache.Last()
	if !ok {
		return CacheStatus{Stale: true}
	}
	return CacheStatus{
		Populated:  true,
		Stale:      s.cache.IsStale(now),
		AgeSeconds: snap.Age(now).Seconds(),
		Count:      len(snap.Markets),
	}
}

// aggregate runs one aggregation per target at a time and stores the result.
// Callers that arrive while one is in flight share its outcome. The work is
// detached from the caller's cancellation so an abandoned request does not
// fail the others waiting on it.
func (s *MarketService) aggregate(ctx context.Context, target int) ([]domain.Market, error) {
	v, err, shared := s.group.Do(strconv.Itoa(target), func() (any, error) {
		markets, err := s.agg.Aggregate(context.WithoutCancel(ctx), target)
		if err != nil {
			return nil, err
		}
		s.cache.Put(domain.SnapshotKey{Target: target}, markets, s.now())
		return markets, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "joined in-flight aggregation", slog.Int("target", target))
	}
	return v.([]domain.Market), nil
}

func (s *MarketService) respond(data []domain.Market, src Source, cached bool) Response {
	if data == nil {
		data = []domain.Market{}
	}
	return Response{
		Success:   true,
		Data:      data,
		Count:     len(data),
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Source:    src,
		Cached:    cached,
	}
}
