package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

// Default client settings.
const (
	DefaultTimeout      = 8 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultUserAgent    = "PolyHub/1.0"
)

// PageQuery selects one page of a Gamma collection.
type PageQuery struct {
	Limit  int
	Offset int
}

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides event and market discovery. It retries transient failures but
// never caches.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	userAgent  string
	logger     *slog.Logger
	calls      atomic.Int64
}

// ClientOption configures a GammaClient.
type ClientOption func(*GammaClient)

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GammaClient) { g.httpClient = c }
}

// WithTimeout bounds each individual HTTP attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(g *GammaClient) { g.timeout = d }
}

// WithMaxRetries sets the number of extra attempts after the first.
func WithMaxRetries(n int) ClientOption {
	return func(g *GammaClient) { g.maxRetries = n }
}

// WithRetryBackoff sets the backoff base; attempt n waits n*base.
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(g *GammaClient) { g.backoff = d }
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) ClientOption {
	return func(g *GammaClient) { g.userAgent = ua }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(g *GammaClient) { g.logger = l }
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, opts ...ClientOption) *GammaClient {
	g := &GammaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultRetryBackoff,
		userAgent:  DefaultUserAgent,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(slog.String("component", "gamma_client"))
	return g
}

// Calls returns how many logical requests the client has issued.
func (g *GammaClient) Calls() int64 {
	return g.calls.Load()
}

// GetEventsPage returns one page of open events ordered by volume.
func (g *GammaClient) GetEventsPage(ctx context.Context, q PageQuery) ([]APIEvent, error) {
	params := pageParams(q)
	params.Set("order", "volume")
	params.Set("related_tags", "true")

	const op = "get events page"
	body, err := g.doGet(ctx, op, "/events?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var events []APIEvent
	if err := decode(op, body, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetMarketsPage returns one page of open markets ordered by volume.
func (g *GammaClient) GetMarketsPage(ctx context.Context, q PageQuery) ([]APIMarket, error) {
	params := pageParams(q)
	params.Set("order", "volumeNum")
	params.Set("include_tag", "true")
	params.Set("related_tags", "true")

	const op = "get markets page"
	body, err := g.doGet(ctx, op, "/markets?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var markets []APIMarket
	if err := decode(op, body, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// GetEventDetail returns a single event with its nested markets. It never
// fails: any error is logged and reported as absence so the caller can fall
// back to the summary record.
func (g *GammaClient) GetEventDetail(ctx context.Context, id string) (*APIEvent, bool) {
	if id == "" {
		return nil, false
	}

	const op = "get event detail"
	body, err := g.doGet(ctx, op, "/events/"+url.PathEscape(id))
	if err != nil {
		g.logger.DebugContext(ctx, "event detail unavailable",
			slog.String("event_id", id),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	var event APIEvent
	if err := decode(op, body, &event); err != nil {
		g.logger.DebugContext(ctx, "event detail undecodable",
			slog.String("event_id", id),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return &event, true
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func pageParams(q PageQuery) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("closed", "false")
	params.Set("ascending", "false")
	return params
}

func decode(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &UpstreamError{Op: op, Cause: fmt.Errorf("%w: %v", domain.ErrDecode, err)}
	}
	return nil
}

// doGet sends an unauthenticated GET request, retrying any failure up to
// maxRetries times. Attempt n (n >= 1) is preceded by a delay of n*backoff.
func (g *GammaClient) doGet(ctx context.Context, op, path string) ([]byte, error) {
	g.calls.Add(1)

	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * g.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &UpstreamError{Op: op, Status: lastStatus, Cause: ctx.Err()}
			case <-timer.C:
			}
		}

		body, status, err := g.getOnce(ctx, path)
		if err == nil {
			return body, nil
		}
		lastErr, lastStatus = err, status

		g.logger.DebugContext(ctx, "gamma request failed",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Int("status", status),
			slog.Bool("transient", IsTransient(err)),
			slog.String("error", err.Error()),
		)
		if errors.Is(ctx.Err(), context.Canceled) {
			break
		}
	}

	return nil, &UpstreamError{Op: op, Status: lastStatus, Cause: lastErr}
}

// getOnce performs a single attempt bounded by the per-call timeout.
func (g *GammaClient) getOnce(ctx context.Context, path string) ([]byte, int, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}
