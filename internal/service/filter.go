package service

import (
	"slices"
	"strings"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

// ListType selects which projection of the canonical list is returned.
type ListType string

const (
	ListAll      ListType = "all"
	ListFeatured ListType = "featured"
	ListTrending ListType = "trending"
)

// ParseListType maps a query value to a ListType. Unknown values select
// ListAll.
func ParseListType(s string) ListType {
	switch ListType(strings.ToLower(strings.TrimSpace(s))) {
	case ListFeatured:
		return ListFeatured
	case ListTrending:
		return ListTrending
	default:
		return ListAll
	}
}

// Projection thresholds.
const (
	FeaturedMinVolume    = 5000.0
	FeaturedMinLiquidity = 1000.0
	FeaturedMax          = 6
	TrendingMinVolume    = 1000.0
	TrendingMax          = 8
)

// Filter projects the canonical, volume-sorted list for a response. The
// input is never modified; featured and trending results are flagged copies.
func Filter(markets []domain.Market, t ListType, limit int) []domain.Market {
	if limit < 0 {
		limit = 0
	}

	switch t {
	case ListFeatured:
		return pick(markets, min(FeaturedMax, limit), func(m domain.Market) bool {
			return m.TotalVolume > FeaturedMinVolume && m.Liquidity > FeaturedMinLiquidity
		}, func(m domain.Market) domain.Market {
			return m.WithFlags(true, false)
		})
	case ListTrending:
		return pick(markets, min(TrendingMax, limit), func(m domain.Market) bool {
			return m.TotalVolume > TrendingMinVolume
		}, func(m domain.Market) domain.Market {
			return m.WithFlags(false, true)
		})
	default:
		return slices.Clone(markets[:min(limit, len(markets))])
	}
}

func pick(markets []domain.Market, n int, keep func(domain.Market) bool, stamp func(domain.Market) domain.Market) []domain.Market {
	out := make([]domain.Market, 0, n)
	for _, m := range markets {
		if len(out) >= n {
			break
		}
		if keep(m) {
			out = append(out, stamp(m))
		}
	}
	return out
}
