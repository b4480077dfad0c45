package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhub/internal/cache/memory"
	"github.com/alanyoungcy/polyhub/internal/domain"
)

// stubAggregator counts calls and returns canned results.
type stubAggregator struct {
	calls   atomic.Int32
	mu      sync.Mutex
	markets []domain.Market
	err     error
	gate    chan struct{} // when set, Aggregate blocks until closed
}

func (s *stubAggregator) Aggregate(ctx context.Context, target int) ([]domain.Market, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.markets, nil
}

func (s *stubAggregator) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(agg Aggregator) (*MarketService, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewMarketService(agg, memory.NewSnapshotCache(time.Minute),
		slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(clock.Now))
	return svc, clock
}

func TestMarketService_LiveThenCache(t *testing.T) {
	agg := &stubAggregator{markets: canonical(10)}
	svc, clock := newTestService(agg)
	ctx := context.Background()

	first := svc.List(ctx, Request{Type: ListAll, Limit: 5})
	assert.True(t, first.Success)
	assert.Equal(t, SourceLive, first.Source)
	assert.False(t, first.Cached)
	assert.Equal(t, 5, first.Count)
	assert.Equal(t, "2025-03-01T12:00:00Z", first.Timestamp)

	clock.Advance(30 * time.Second)
	second := svc.List(ctx, Request{Type: ListAll, Limit: 5})
	assert.Equal(t, SourceCache, second.Source)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)
	assert.EqualValues(t, 1, agg.calls.Load())
}

func TestMarketService_SupersetServesOtherShapes(t *testing.T) {
	agg := &stubAggregator{markets: canonical(20)}
	svc, _ := newTestService(agg)
	ctx := context.Background()

	svc.List(ctx, Request{Type: ListAll, Limit: 100})
	resp := svc.List(ctx, Request{Type: ListFeatured, Limit: 6})
	assert.Equal(t, SourceCache, resp.Source)
	for _, m := range resp.Data {
		assert.True(t, m.Featured)
	}

	// A larger target than the snapshot forces a fresh aggregation.
	resp = svc.List(ctx, Request{Type: ListAll, Limit: 200})
	assert.Equal(t, SourceLive, resp.Source)
	assert.EqualValues(t, 2, agg.calls.Load())
}

func TestMarketService_RefreshBypassesCache(t *testing.T) {
	agg := &stubAggregator{markets: canonical(3)}
	svc, _ := newTestService(agg)
	ctx := context.Background()

	svc.List(ctx, Request{Limit: 3})
	resp := svc.List(ctx, Request{Limit: 3, Refresh: true})
	assert.Equal(t, SourceLive, resp.Source)
	assert.EqualValues(t, 2, agg.calls.Load())
}

func TestMarketService_ExpiredCacheReaggregates(t *testing.T) {
	agg := &stubAggregator{markets: canonical(3)}
	svc, clock := newTestService(agg)
	ctx := context.Background()

	svc.List(ctx, Request{Limit: 3})
	clock.Advance(61 * time.Second)
	resp := svc.List(ctx, Request{Limit: 3})
	assert.Equal(t, SourceLive, resp.Source)
	assert.EqualValues(t, 2, agg.calls.Load())
}

func TestMarketService_StaleFallback(t *testing.T) {
	agg := &stubAggregator{markets: canonical(10)}
	svc, clock := newTestService(agg)
	ctx := context.Background()

	live := svc.List(ctx, Request{Type: ListAll, Limit: 4})
	require.Equal(t, SourceLive, live.Source)

	clock.Advance(5 * time.Minute)
	agg.fail(errors.New("gamma unreachable"))

	resp := svc.List(ctx, Request{Type: ListAll, Limit: 4})
	assert.True(t, resp.Success)
	assert.Equal(t, SourceStale, resp.Source)
	assert.True(t, resp.Cached)
	assert.Equal(t, "Upstream error: gamma unreachable", resp.Warning)
	assert.Empty(t, resp.Error)
	assert.Equal(t, live.Data, resp.Data)
}

func TestMarketService_ColdFailure(t *testing.T) {
	agg := &stubAggregator{err: errors.New("gamma unreachable")}
	svc, _ := newTestService(agg)

	resp := svc.List(context.Background(), Request{Limit: 10})
	assert.True(t, resp.Success)
	assert.Equal(t, SourceFallback, resp.Source)
	assert.False(t, resp.Cached)
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data)
	assert.Zero(t, resp.Count)
	assert.Equal(t, "gamma unreachable", resp.Error)
}

func TestMarketService_ConcurrentRequestsShareAggregation(t *testing.T) {
	agg := &stubAggregator{markets: canonical(10), gate: make(chan struct{})}
	svc, _ := newTestService(agg)

	const n = 8
	var wg sync.WaitGroup
	results := make([]Response, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.List(context.Background(), Request{Limit: 10})
		}()
	}

	require.Eventually(t, func() bool { return agg.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Let the other callers reach the in-flight call before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(agg.gate)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 10, r.Count)
	}
	assert.EqualValues(t, 1, agg.calls.Load())
}

func TestMarketService_CancelledCallerDoesNotAbortAggregation(t *testing.T) {
	agg := &stubAggregator{markets: canonical(3)}
	svc, _ := newTestService(agg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := svc.List(ctx, Request{Limit: 3})
	assert.Equal(t, SourceLive, resp.Source)
}

func TestMarketService_Get(t *testing.T) {
	agg := &stubAggregator{markets: canonical(5)}
	svc, _ := newTestService(agg)
	ctx := context.Background()

	m, err := svc.Get(ctx, "m2", 100)
	require.NoError(t, err)
	assert.Equal(t, "m2", m.ID)
	assert.EqualValues(t, 1, agg.calls.Load(), "cold cache aggregates once")

	_, err = svc.Get(ctx, "missing", 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualValues(t, 1, agg.calls.Load())
}

func TestMarketService_GetColdFailure(t *testing.T) {
	boom := errors.New("boom")
	svc, _ := newTestService(&stubAggregator{err: boom})

	_, err := svc.Get(context.Background(), "m1", 100)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestMarketService_RefreshAndCacheStatus(t *testing.T) {
	agg := &stubAggregator{markets: canonical(4)}
	svc, clock := newTestService(agg)

	status := svc.CacheStatus()
	assert.False(t, status.Populated)
	assert.True(t, status.Stale)

	require.NoError(t, svc.Refresh(context.Background(), 100))
	clock.Advance(10 * time.Second)

	status = svc.CacheStatus()
	assert.True(t, status.Populated)
	assert.False(t, status.Stale)
	assert.Equal(t, 4, status.Count)
	assert.Equal(t, 10.0, status.AgeSeconds)

	agg.fail(errors.New("down"))
	assert.Error(t, svc.Refresh(context.Background(), 100))
}
