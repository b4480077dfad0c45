package normalizer

import (
	"regexp"
	"strings"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

// categoryRule matches a category first by tag/category label, then by
// keywords in the market title.
type categoryRule struct {
	id     string
	labels []string
	title  *regexp.Regexp
}

// categoryRules is evaluated in order; the first match wins.
var categoryRules = []categoryRule{
	{
		id:     domain.CategoryPolitics,
		labels: []string{"politics", "election", "elections", "us-politics", "geopolitics"},
		title:  regexp.MustCompile(`\b(president\w*|elections?|primar(y|ies)|senate|senators?|congress|vote|votes|voting|governor|parliament|prime minister)\b`),
	},
	{
		id:     domain.CategorySports,
		labels: []string{"sports", "nfl", "nba", "mlb", "nhl", "soccer", "football", "tennis"},
		title:  regexp.MustCompile(`\b(sports?|super bowl|nfl|nba|mlb|nhl|world cup|champions league|premier league|playoffs?|finals?)\b`),
	},
	{
		id:     domain.CategoryCrypto,
		labels: []string{"crypto", "bitcoin", "ethereum", "solana"},
		title:  regexp.MustCompile(`\b(bitcoin|btc|ethereum|eth|crypto\w*|solana|sol|xrp|dogecoin|stablecoins?)\b`),
	},
	{
		id:     domain.CategoryBusiness,
		labels: []string{"business", "economy", "finance", "fed", "stocks"},
		title:  regexp.MustCompile(`\b(fed|federal reserve|gdp|inflation|stocks?|nasdaq|s&p|recession|interest rates?|earnings|ipo)\b`),
	},
	{
		id:     domain.CategoryTechnology,
		labels: []string{"technology", "tech", "ai", "science"},
		title:  regexp.MustCompile(`\b(ai|tech\w*|tiktok|google|microsoft|openai|apple|nvidia|spacex|gpt-?\d*)\b`),
	},
	{
		id:     domain.CategoryEntertainment,
		labels: []string{"entertainment", "pop culture", "pop-culture", "culture", "movies", "music"},
		title:  regexp.MustCompile(`\b(oscars?|grammys?|emmys?|box office|movies?|album|billboard|netflix|taylor swift)\b`),
	},
}

// ResolveCategory assigns a category from tag labels and the title. Labels
// are checked against every rule before any title keyword is tried, so an
// explicit tag always beats an incidental word in the question. It is a pure
// function of its inputs.
func ResolveCategory(labels []string, title string) domain.Category {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			set[l] = struct{}{}
		}
	}

	for _, rule := range categoryRules {
		for _, l := range rule.labels {
			if _, ok := set[l]; ok {
				return domain.CategoryByID(rule.id)
			}
		}
	}

	t := strings.ToLower(title)
	for _, rule := range categoryRules {
		if rule.title.MatchString(t) {
			return domain.CategoryByID(rule.id)
		}
	}

	return domain.CategoryByID(domain.CategoryWorld)
}
