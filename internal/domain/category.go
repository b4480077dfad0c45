package domain

// Category ids. The set is closed; CategoryWorld is the fallback bucket.
const (
	CategoryPolitics      = "politics"
	CategorySports        = "sports"
	CategoryCrypto        = "crypto"
	CategoryBusiness      = "business"
	CategoryTechnology    = "technology"
	CategoryEntertainment = "entertainment"
	CategoryWorld         = "world"
)

// Category is a display grouping for markets.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

var categories = []Category{
	{ID: CategoryPolitics, Name: "Politics", Slug: "politics", Description: "Elections and political events", Color: "#3B82F6", Icon: "Vote"},
	{ID: CategorySports, Name: "Sports", Slug: "sports", Description: "Sports predictions and outcomes", Color: "#EF4444", Icon: "Trophy"},
	{ID: CategoryCrypto, Name: "Crypto", Slug: "crypto", Description: "Cryptocurrency and blockchain", Color: "#F59E0B", Icon: "Coins"},
	{ID: CategoryBusiness, Name: "Business", Slug: "business", Description: "Corporate and economic events", Color: "#10B981", Icon: "Building"},
	{ID: CategoryTechnology, Name: "Technology", Slug: "technology", Description: "Technology and innovation", Color: "#8B5CF6", Icon: "Cpu"},
	{ID: CategoryEntertainment, Name: "Entertainment", Slug: "entertainment", Description: "Movies, TV, and celebrity events", Color: "#F97316", Icon: "Film"},
	{ID: CategoryWorld, Name: "World", Slug: "world", Description: "Global news and events", Color: "#6B7280", Icon: "Globe"},
}

// Categories returns the full category list in resolution priority order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryByID returns the category with the given id. Unknown ids resolve to
// the world category.
func CategoryByID(id string) Category {
	for _, c := range categories {
		if c.ID == id {
			return c
		}
	}
	return categories[len(categories)-1]
}
