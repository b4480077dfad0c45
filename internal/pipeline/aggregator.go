// Package pipeline builds the canonical, volume-ranked market list from the
// Gamma events and markets collections.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyhub/internal/domain"
	"github.com/alanyoungcy/polyhub/internal/normalizer"
	"github.com/alanyoungcy/polyhub/internal/platform/polymarket"
)

// Upstream is the subset of the Gamma client the aggregator needs.
type Upstream interface {
	GetEventsPage(ctx context.Context, q polymarket.PageQuery) ([]polymarket.APIEvent, error)
	GetMarketsPage(ctx context.Context, q polymarket.PageQuery) ([]polymarket.APIMarket, error)
	GetEventDetail(ctx context.Context, id string) (*polymarket.APIEvent, bool)
}

// Settings bounds how much of the upstream a single pass reads.
type Settings struct {
	EventsPageSize  int
	EventsMaxPages  int
	DetailLimit     int           // events hydrated with a detail fetch
	MarketsPageSize int
	MarketsMaxPages int
	PageDelay       time.Duration // minimum spacing between page fetches; 0 disables
}

// DefaultSettings returns the production fetch bounds.
func DefaultSettings() Settings {
	return Settings{
		EventsPageSize:  100,
		EventsMaxPages:  1,
		DetailLimit:     40,
		MarketsPageSize: 100,
		MarketsMaxPages: 5,
		PageDelay:       150 * time.Millisecond,
	}
}

// Aggregator runs one full fetch-normalize-merge pass per call.
type Aggregator struct {
	upstream Upstream
	norm     *normalizer.Normalizer
	settings Settings
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(upstream Upstream, norm *normalizer.Normalizer, settings Settings, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		upstream: upstream,
		norm:     norm,
		settings: settings,
		logger:   logger.With(slog.String("component", "aggregator")),
	}
}

// Aggregate fetches events and markets until target listings are collected
// (or the page caps are hit) and returns them merged and sorted by total
// volume, highest first. Upstream failures on the collection endpoints are
// returned as-is; failed detail fetches fall back to the summary record.
func (a *Aggregator) Aggregate(ctx context.Context, target int) ([]domain.Market, error) {
	start := time.Now()
	logger := a.logger.With(slog.String("pass_id", uuid.NewString()), slog.Int("target", target))

	pacer := rate.NewLimiter(rate.Inf, 1)
	if a.settings.PageDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(a.settings.PageDelay), 1)
	}

	events, err := a.collectEvents(ctx, pacer)
	if err != nil {
		return nil, fmt.Errorf("pipeline: collect events: %w", err)
	}

	hydrated := a.hydrate(ctx, events)

	eventMarkets := make([]domain.Market, 0, len(hydrated))
	titleKeys := make(map[string]string, len(hydrated))
	for i := range hydrated {
		eventMarkets = append(eventMarkets, a.norm.NormalizeEvent(hydrated[i]))
		titleKeys[hydrated[i].ID] = normalizer.TitleKey(hydrated[i].Title)
	}

	standalone, skipped, err := a.collectMarkets(ctx, pacer, target-len(eventMarkets), titleKeys)
	if err != nil {
		return nil, fmt.Errorf("pipeline: collect markets: %w", err)
	}

	merged := make([]domain.Market, 0, len(eventMarkets)+len(standalone))
	merged = append(merged, eventMarkets...)
	merged = append(merged, standalone...)
	SortByVolume(merged)

	logger.InfoContext(ctx, "aggregation complete",
		slog.Int("events", len(eventMarkets)),
		slog.Int("markets", len(standalone)),
		slog.Int("duplicates_skipped", skipped),
		slog.Int("total", len(merged)),
		slog.Duration("duration", time.Since(start)),
	)
	return merged, nil
}

// collectEvents pages the events collection and keeps listed events.
func (a *Aggregator) collectEvents(ctx context.Context, pacer *rate.Limiter) ([]polymarket.APIEvent, error) {
	var (
		out  []polymarket.APIEvent
		seen = make(map[string]struct{})
	)
	for page := 0; page < a.settings.EventsMaxPages; page++ {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}

		offset := page * a.settings.EventsPageSize
		events, err := a.upstream.GetEventsPage(ctx, polymarket.PageQuery{Limit: a.settings.EventsPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("events at offset %d: %w", offset, err)
		}
		if len(events) == 0 {
			break
		}

		for i := range events {
			if !events[i].Listed() {
				continue
			}
			if _, dup := seen[events[i].ID]; dup {
				continue
			}
			seen[events[i].ID] = struct{}{}
			out = append(out, events[i])
		}

		if len(events) < a.settings.EventsPageSize {
			break
		}
	}
	return out, nil
}

// hydrate replaces the first DetailLimit events with their detail records,
// fetched concurrently. Misses keep the summary record.
func (a *Aggregator) hydrate(ctx context.Context, events []polymarket.APIEvent) []polymarket.APIEvent {
	n := min(a.settings.DetailLimit, len(events))
	if n <= 0 {
		return events
	}

	out := make([]polymarket.APIEvent, len(events))
	copy(out, events)

	var g errgroup.Group
	g.SetLimit(n)
	misses := make([]bool, n)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if detail, ok := a.upstream.GetEventDetail(ctx, events[i].ID); ok && detail != nil {
				out[i] = *detail
			} else {
				misses[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	missed := 0
	for _, m := range misses {
		if m {
			missed++
		}
	}
	if missed > 0 {
		a.logger.WarnContext(ctx, "event detail hydration incomplete",
			slog.Int("requested", n),
			slog.Int("missed", missed),
		)
	}
	return out
}

// collectMarkets pages the markets collection until want listings survive
// filtering or the page cap is hit. A market is dropped as a duplicate when
// it references an already included event whose normalized title equals the
// market's normalized question.
func (a *Aggregator) collectMarkets(ctx context.Context, pacer *rate.Limiter, want int, titleKeys map[string]string) ([]domain.Market, int, error) {
	var (
		out     []domain.Market
		seen    = make(map[string]struct{})
		skipped int
	)
	for page := 0; page < a.settings.MarketsMaxPages && len(out) < want; page++ {
		if err := pacer.Wait(ctx); err != nil {
			return nil, 0, err
		}

		offset := page * a.settings.MarketsPageSize
		markets, err := a.upstream.GetMarketsPage(ctx, polymarket.PageQuery{Limit: a.settings.MarketsPageSize, Offset: offset})
		if err != nil {
			return nil, 0, fmt.Errorf("markets at offset %d: %w", offset, err)
		}
		if len(markets) == 0 {
			break
		}

		for i := range markets {
			m := &markets[i]
			if !m.Listed() {
				continue
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			if DuplicatesEvent(m, titleKeys) {
				skipped++
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, a.norm.NormalizeMarket(*m))
		}
	}
	return out, skipped, nil
}

// DuplicatesEvent reports whether m restates an included event: it must
// reference that event by id and carry the same normalized title. Sharing
// a parent event alone is not enough, since distinct sub-markets of one
// event are separate listings.
func DuplicatesEvent(m *polymarket.APIMarket, titleKeys map[string]string) bool {
	if len(m.Events) == 0 {
		return false
	}
	question := normalizer.TitleKey(m.Question)
	for _, ref := range m.Events {
		if key, ok := titleKeys[ref.ID]; ok && key == question {
			return true
		}
	}
	return false
}

// SortByVolume orders markets by total volume, highest first, keeping
// encounter order among equal volumes.
func SortByVolume(markets []domain.Market) {
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].TotalVolume > markets[j].TotalVolume
	})
}
