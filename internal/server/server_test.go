package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhub/internal/cache/memory"
	"github.com/alanyoungcy/polyhub/internal/domain"
	"github.com/alanyoungcy/polyhub/internal/server/handler"
	"github.com/alanyoungcy/polyhub/internal/server/middleware"
	"github.com/alanyoungcy/polyhub/internal/service"
)

type staticAggregator struct {
	markets []domain.Market
	err     error
}

func (s staticAggregator) Aggregate(context.Context, int) ([]domain.Market, error) {
	return s.markets, s.err
}

// memoryLimiter allows the first n calls per key.
type memoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (l *memoryLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func newTestHandler(t *testing.T, agg service.Aggregator, cfg Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewMarketService(agg, memory.NewSnapshotCache(time.Minute), logger)
	return NewHandler(cfg, Handlers{
		Health:  handler.NewHealthHandler(svc, logger),
		Markets: handler.NewMarketHandler(svc, handler.Limits{Default: 100, Max: 300}, logger),
		Status:  handler.NewStatusHandler("server", "test"),
	}, logger)
}

func sampleMarkets() []domain.Market {
	return []domain.Market{
		{ID: "event-1", TotalVolume: 90000, Liquidity: 5000},
		{ID: "2", TotalVolume: 3000, Liquidity: 10},
		{ID: "3", TotalVolume: 10, Liquidity: 10},
	}
}

func get(h http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_MarketsEnvelope(t *testing.T) {
	h := newTestHandler(t, staticAggregator{markets: sampleMarkets()}, Config{})

	rec := get(h, "/api/markets?type=trending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, service.SourceLive, resp.Source)
	assert.Equal(t, 2, resp.Count)
	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)

	rec = get(h, "/api/markets?type=trending", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, service.SourceCache, resp.Source)
	assert.True(t, resp.Cached)
}

func TestServer_UpstreamFailureNeverNon2xx(t *testing.T) {
	h := newTestHandler(t, staticAggregator{err: errors.New("gamma: 503")}, Config{})

	rec := get(h, "/api/markets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, service.SourceFallback, resp.Source)
	assert.Equal(t, "gamma: 503", resp.Error)
}

func TestServer_HealthReportsCache(t *testing.T) {
	h := newTestHandler(t, staticAggregator{markets: sampleMarkets()}, Config{})

	var body struct {
		Status string              `json:"status"`
		Cache  service.CacheStatus `json:"cache"`
	}

	rec := get(h, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Cache.Populated)

	get(h, "/api/markets", nil)

	rec = get(h, "/api/health", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Cache.Populated)
	assert.Equal(t, 3, body.Cache.Count)
}

func TestServer_Status(t *testing.T) {
	h := newTestHandler(t, staticAggregator{}, Config{})
	rec := get(h, "/api/status", nil)
	assert.JSONEq(t, `{"mode":"server","version":"test"}`, rec.Body.String())
}

func TestServer_RequestID(t *testing.T) {
	h := newTestHandler(t, staticAggregator{}, Config{})

	rec := get(h, "/api/status", nil)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = get(h, "/api/status", map[string]string{middleware.RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(middleware.RequestIDHeader))
}

func TestServer_CORS(t *testing.T) {
	h := newTestHandler(t, staticAggregator{}, Config{CORSOrigins: []string{"http://localhost:3000"}})

	rec := get(h, "/api/status", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(h, "/api/status", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimit(t *testing.T) {
	limiter := &memoryLimiter{}
	h := newTestHandler(t, staticAggregator{markets: sampleMarkets()}, Config{
		Limiter:    limiter,
		RateLimit:  2,
		RateWindow: time.Minute,
	})

	hdr := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	assert.Equal(t, http.StatusOK, get(h, "/api/status", hdr).Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/status", hdr).Code)

	rec := get(h, "/api/status", hdr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Health checks and other clients are unaffected.
	assert.Equal(t, http.StatusOK, get(h, "/api/health", hdr).Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/status", map[string]string{"X-Forwarded-For": "198.51.100.1"}).Code)
}

func TestServer_RateLimiterErrorFailsOpen(t *testing.T) {
	h := newTestHandler(t, staticAggregator{}, Config{
		Limiter:    &memoryLimiter{err: errors.New("redis down")},
		RateLimit:  1,
		RateWindow: time.Minute,
	})
	assert.Equal(t, http.StatusOK, get(h, "/api/status", nil).Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/status", nil).Code)
}
