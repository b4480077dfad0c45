package domain

// MarketSource identifies which upstream collection produced a Market.
type MarketSource string

const (
	MarketSourceEvent  MarketSource = "event"
	MarketSourceMarket MarketSource = "market"
)

// Fixed presentation values shared by every aggregated market.
const (
	MarketCreator = "Polymarket"
	MinPrice      = 0.01
	MaxPrice      = 0.99

	// EventIDPrefix namespaces event-derived markets so they never collide
	// with standalone market ids.
	EventIDPrefix = "event-"

	MarketRules = "Market resolves based on Polymarket resolution criteria."
	EventRules  = "Aggregated event composed of related markets on Polymarket."
)

// Outcome is one tradable result of a market.
type Outcome struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Probability    float64 `json:"probability"`
	Volume24h      float64 `json:"volume24h"`
	PriceChange24h float64 `json:"priceChange24h"` // display only, see normalizer
}

// Market is the unified listing served to the dashboard. It is built once per
// aggregation pass and treated as immutable afterwards; callers that need to
// change a flag work on a copy (see Market.WithFlags).
type Market struct {
	ID            string             `json:"id"`
	Question      string             `json:"question"`
	Description   string             `json:"description"`
	Category      Category           `json:"category"`
	Outcomes      []Outcome          `json:"outcomes"`
	Liquidity     float64            `json:"liquidity"`
	TotalVolume   float64            `json:"totalVolume"`
	CreatedAt     string             `json:"createdAt,omitempty"`
	ClosingTime   string             `json:"closingTime,omitempty"`
	Resolved      bool               `json:"resolved"`
	Featured      bool               `json:"featured"`
	Trending      bool               `json:"trending"`
	Tags          []string           `json:"tags"`
	Creator       string             `json:"creator"`
	Source        MarketSource       `json:"source"`
	Rules         string             `json:"rules"`
	MinPrice      float64            `json:"minPrice"`
	MaxPrice      float64            `json:"maxPrice"`
	CurrentPrices map[string]float64 `json:"currentPrices"`
}

// PriceMap projects outcomes into the outcome-id -> price map stored in
// Market.CurrentPrices.
func PriceMap(outcomes []Outcome) map[string]float64 {
	prices := make(map[string]float64, len(outcomes))
	for _, o := range outcomes {
		prices[o.ID] = o.Price
	}
	return prices
}

// WithFlags returns a shallow copy of m with the featured/trending flags
// overlaid. Flags already set on m are kept.
func (m Market) WithFlags(featured, trending bool) Market {
	m.Featured = m.Featured || featured
	m.Trending = m.Trending || trending
	return m
}
