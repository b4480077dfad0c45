// Package normalizer converts raw Gamma events and markets into the unified
// domain.Market shape served to the dashboard.
package normalizer

import (
	"math"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/polyhub/internal/domain"
	"github.com/alanyoungcy/polyhub/internal/platform/polymarket"
)

const (
	defaultPrice = 0.5
	// maxJitter bounds the synthetic 24h price change.
	maxJitter = 0.05
)

// Normalizer turns upstream records into domain markets. The only state it
// holds is the random source for the synthetic 24h price change, so a
// single instance is shared by every aggregation pass.
//
// The synthetic change exists for parity with the dashboard's sparkline and
// carries no market signal. It is generated once per record at
// normalization time and never recomputed.
type Normalizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithRand sets the random source used for the synthetic price change.
func WithRand(r *rand.Rand) Option {
	return func(n *Normalizer) { n.rng = r }
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		seed := uint64(time.Now().UnixNano())
		n.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return n
}

func (n *Normalizer) jitter() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return (n.rng.Float64() - 0.5) * 2 * maxJitter
}

// NormalizeMarket converts a standalone Gamma market.
func (n *Normalizer) NormalizeMarket(m polymarket.APIMarket) domain.Market {
	labels := tagLabels(m.Tags, m.Categories)
	outcomes := n.outcomes(m.Outcomes, m.OutcomePrices, m.OneDayPriceChange)
	spreadVolume(outcomes, m.Volume24hr.Or(0))

	return domain.Market{
		ID:            m.ID,
		Question:      m.Question,
		Description:   firstNonEmpty(m.Description, m.Question),
		Category:      ResolveCategory(labels, m.Question),
		Outcomes:      outcomes,
		Liquidity:     m.TotalLiquidity(),
		TotalVolume:   m.TotalVolume(),
		CreatedAt:     m.CreatedAt,
		ClosingTime:   m.EndDate,
		Resolved:      m.Closed.IsTrue(),
		Featured:      m.Featured.IsTrue(),
		Trending:      m.New.IsTrue(),
		Tags:          displayTags(m.Tags),
		Creator:       domain.MarketCreator,
		Source:        domain.MarketSourceMarket,
		Rules:         domain.MarketRules,
		MinPrice:      domain.MinPrice,
		MaxPrice:      domain.MaxPrice,
		CurrentPrices: domain.PriceMap(outcomes),
	}
}

// NormalizeEvent converts an event into a single aggregated market. Outcomes
// come from the event's highest-volume sub-market; volume and liquidity use
// the event's own totals when present and otherwise sum the sub-markets.
func (n *Normalizer) NormalizeEvent(e polymarket.APIEvent) domain.Market {
	labels := tagLabels(e.Tags, e.Categories)

	var outcomes []domain.Outcome
	if primary := PrimaryMarket(e.Markets); primary != nil {
		outcomes = n.outcomes(primary.Outcomes, primary.OutcomePrices, primary.OneDayPriceChange)
	} else {
		outcomes = binaryFallback()
	}
	spreadVolume(outcomes, e.Volume24hr.Or(0))

	volume, liquidity := e.Volume.Value, e.Liquidity.Value
	if !e.Volume.Valid {
		volume = 0
		for i := range e.Markets {
			volume += e.Markets[i].TotalVolume()
		}
	}
	if !e.Liquidity.Valid {
		liquidity = 0
		for i := range e.Markets {
			liquidity += e.Markets[i].TotalLiquidity()
		}
	}

	return domain.Market{
		ID:            domain.EventIDPrefix + e.ID,
		Question:      e.Title,
		Description:   firstNonEmpty(e.Description, e.Title),
		Category:      ResolveCategory(labels, e.Title),
		Outcomes:      outcomes,
		Liquidity:     liquidity,
		TotalVolume:   volume,
		CreatedAt:     e.CreatedAt,
		ClosingTime:   e.EndDate,
		Resolved:      e.Closed.IsTrue(),
		Tags:          displayTags(e.Tags),
		Creator:       domain.MarketCreator,
		Source:        domain.MarketSourceEvent,
		Rules:         domain.EventRules,
		MinPrice:      domain.MinPrice,
		MaxPrice:      domain.MaxPrice,
		CurrentPrices: domain.PriceMap(outcomes),
	}
}

// PrimaryMarket returns the sub-market with the highest volume, the first
// one on ties, or nil when there are none.
func PrimaryMarket(markets []polymarket.APIMarket) *polymarket.APIMarket {
	var best *polymarket.APIMarket
	for i := range markets {
		if best == nil || markets[i].TotalVolume() > best.TotalVolume() {
			best = &markets[i]
		}
	}
	return best
}

// ParseOutcomes decodes the parallel name and price arrays. ok is false when
// the payload was malformed and the binary Yes/No fallback was returned.
// Price changes are left at zero.
func ParseOutcomes(names, prices polymarket.JSONList) (outcomes []domain.Outcome, ok bool) {
	nameList, err := names.Strings()
	if err != nil || len(nameList) == 0 {
		return binaryFallback(), false
	}
	priceList, err := prices.Elements()
	if err != nil || len(priceList) != len(nameList) {
		return binaryFallback(), false
	}

	outcomes = make([]domain.Outcome, len(nameList))
	for i, name := range nameList {
		p := coercePrice(priceList[i])
		outcomes[i] = domain.Outcome{
			ID:          OutcomeID(name),
			Name:        name,
			Price:       p,
			Probability: p,
		}
	}
	return outcomes, true
}

// outcomes parses outcomes and fills in the 24h price change: the upstream
// value when supplied, otherwise jitter. The fallback pair gets no change.
func (n *Normalizer) outcomes(names, prices polymarket.JSONList, change polymarket.FlexFloat) []domain.Outcome {
	outcomes, ok := ParseOutcomes(names, prices)
	if !ok {
		return outcomes
	}
	for i := range outcomes {
		switch {
		case change.Valid && i == 0:
			outcomes[i].PriceChange24h = change.Value
		case change.Valid && i == 1 && len(outcomes) == 2:
			outcomes[i].PriceChange24h = -change.Value
		default:
			outcomes[i].PriceChange24h = n.jitter()
		}
	}
	return outcomes
}

// OutcomeID derives a stable outcome id from its display name.
func OutcomeID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

var nonAlnum = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// TitleKey normalizes a question or title for duplicate detection: lower
// case, punctuation and whitespace runs collapsed to single spaces.
func TitleKey(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

func coercePrice(raw []byte) float64 {
	p, ok := polymarket.ParseNumber(raw)
	if !ok {
		return defaultPrice
	}
	return math.Min(1, math.Max(0, p))
}

func binaryFallback() []domain.Outcome {
	return []domain.Outcome{
		{ID: "yes", Name: "Yes", Price: defaultPrice, Probability: defaultPrice},
		{ID: "no", Name: "No", Price: defaultPrice, Probability: defaultPrice},
	}
}

func spreadVolume(outcomes []domain.Outcome, volume24h float64) {
	if len(outcomes) == 0 {
		return
	}
	share := volume24h / float64(len(outcomes))
	for i := range outcomes {
		outcomes[i].Volume24h = share
	}
}

func tagLabels(lists ...[]polymarket.APITag) []string {
	var labels []string
	for _, list := range lists {
		for _, t := range list {
			labels = append(labels, strings.ToLower(t.Label))
		}
	}
	return labels
}

func displayTags(tags []polymarket.APITag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Label != "" {
			out = append(out, t.Label)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
