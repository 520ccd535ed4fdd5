package listing

import (
	"fmt"
	"strings"
)

// Filter narrows the catalog. Query matches titles case-insensitively; the
// price window is inclusive at both ends.
type Filter struct {
	Query     string  `json:"query,omitempty"`
	Category  string  `json:"category"`
	Condition string  `json:"condition"`
	MinPrice  float64 `json:"min_price"`
	MaxPrice  float64 `json:"max_price"`
}

// DefaultFilter matches every listing in the sample catalog.
func DefaultFilter() Filter {
	return Filter{
		Category:  All,
		Condition: All,
		MinPrice:  DefaultMinPrice,
		MaxPrice:  DefaultMaxPrice,
	}
}

// Reset clears every facet but keeps the search text.
func (f Filter) Reset() Filter {
	out := DefaultFilter()
	out.Query = f.Query
	return out
}

func (f Filter) Validate() error {
	if !validChoice(Categories, f.Category) {
		return fmt.Errorf("unknown category %q", f.Category)
	}
	if !validChoice(Conditions, f.Condition) {
		return fmt.Errorf("unknown condition %q", f.Condition)
	}
	if f.MinPrice < 0 || f.MaxPrice < f.MinPrice {
		return fmt.Errorf("invalid price window %.2f..%.2f", f.MinPrice, f.MaxPrice)
	}
	return nil
}

func (f Filter) Match(l Listing) bool {
	if q := strings.ToLower(f.Query); q != "" && !strings.Contains(strings.ToLower(l.Title), q) {
		return false
	}
	if f.Category != All && l.Category != f.Category {
		return false
	}
	if f.Condition != All && l.Condition != f.Condition {
		return false
	}
	return l.Price >= f.MinPrice && l.Price <= f.MaxPrice
}

// Apply returns the listings matching f in catalog order.
func (f Filter) Apply(items []Listing) []Listing {
	out := make([]Listing, 0, len(items))
	for _, l := range items {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

// ActiveCount is the number of facets narrowed from the default. The price
// window counts once however many bounds moved. Query is not a facet.
func (f Filter) ActiveCount() int {
	n := 0
	if f.Category != All {
		n++
	}
	if f.Condition != All {
		n++
	}
	if f.MinPrice > DefaultMinPrice || f.MaxPrice < DefaultMaxPrice {
		n++
	}
	return n
}
