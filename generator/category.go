package generator

// DefaultCount is the number of candidates requested per category.
const DefaultCount = 5

// Category is one dashboard bucket: a region, an OEM customer or a motor
// manufacturer.
type Category struct {
	// ID is the label stored with each article (e.g. "유럽", "GM").
	ID string `yaml:"id"`
	// Context is the English topic description given to the model.
	Context string `yaml:"context"`
	Count   int    `yaml:"count"`
	// Feeds are optional RSS/Atom URLs read by FeedGenerator.
	Feeds []string `yaml:"feeds,omitempty"`
}

// DefaultCategories returns the stock categories in dashboard order.
func DefaultCategories() []Category {
	return []Category{
		// Regions
		{ID: "아시아", Context: "Asian EV motor market developments", Count: DefaultCount},
		{ID: "유럽", Context: "European EV motor market developments", Count: DefaultCount},
		{ID: "북미", Context: "North American EV motor market developments", Count: DefaultCount},
		{ID: "중국", Context: "Chinese EV motor market developments", Count: DefaultCount},

		// Customers
		{ID: "GM", Context: "GM electric vehicle motor news and developments", Count: DefaultCount},
		{ID: "Ford", Context: "Ford electric vehicle motor news and developments", Count: DefaultCount},
		{ID: "벤츠", Context: "Mercedes-Benz electric vehicle motor news and developments", Count: DefaultCount},
		{ID: "BMW", Context: "BMW electric vehicle motor news and developments", Count: DefaultCount},
		{ID: "폭스바겐", Context: "Volkswagen electric vehicle motor news and developments", Count: DefaultCount},
		{ID: "Honda", Context: "Honda electric vehicle motor news and developments", Count: DefaultCount},
		{ID: "현대", Context: "Hyundai/Kia electric vehicle motor news and developments", Count: DefaultCount},

		// Motor manufacturers
		{ID: "Bosch", Context: "Bosch electric motor manufacturing and technology", Count: DefaultCount},
		{ID: "ZF", Context: "ZF electric motor manufacturing and technology", Count: DefaultCount},
		{ID: "Schaeffler", Context: "Schaeffler electric motor manufacturing and technology", Count: DefaultCount},
		{ID: "LG마그나", Context: "LG Magna electric motor manufacturing and partnerships", Count: DefaultCount},
		{ID: "기타", Context: "Other electric motor suppliers and technology providers", Count: DefaultCount},
	}
}

// count returns the requested number of candidates, DefaultCount when unset.
func (c Category) count() int {
	if c.Count <= 0 {
		return DefaultCount
	}
	return c.Count
}
