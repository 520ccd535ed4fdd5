// Package listing holds the marketplace catalog shown by the explore view
// and the filter applied to it.
package listing

// All is the wildcard value for Category and Condition.
const All = "All"

const (
	DefaultMinPrice = 0
	DefaultMaxPrice = 100
)

var (
	Categories = []string{All, "Books", "Electronics", "Furniture", "Clothing", "Appliances", "Other"}
	Conditions = []string{All, "Like New", "Good", "Fair"}
)

type Listing struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Condition string  `json:"condition"`
	Category  string  `json:"category"`
}

var sampleCatalog = []Listing{
	{ID: "1", Title: "Calculus Textbook", Price: 45, Condition: "Like New", Category: "Books"},
	{ID: "2", Title: "Desk Lamp", Price: 20, Condition: "Good", Category: "Furniture"},
	{ID: "3", Title: "Winter Jacket", Price: 60, Condition: "Like New", Category: "Clothing"},
	{ID: "4", Title: "Laptop Stand", Price: 35, Condition: "Fair", Category: "Electronics"},
	{ID: "5", Title: "Biology Notes", Price: 15, Condition: "Good", Category: "Books"},
	{ID: "6", Title: "Mini Fridge", Price: 80, Condition: "Like New", Category: "Appliances"},
	{ID: "7", Title: "Chemistry Lab Coat", Price: 25, Condition: "Good", Category: "Clothing"},
	{ID: "8", Title: "Graphing Calculator", Price: 50, Condition: "Like New", Category: "Electronics"},
	{ID: "9", Title: "Office Chair", Price: 70, Condition: "Fair", Category: "Furniture"},
	{ID: "10", Title: "Physics Textbook", Price: 55, Condition: "Good", Category: "Books"},
}

// SampleCatalog returns a copy of the built-in listings.
func SampleCatalog() []Listing {
	out := make([]Listing, len(sampleCatalog))
	copy(out, sampleCatalog)
	return out
}

func validChoice(choices []string, v string) bool {
	for _, c := range choices {
		if c == v {
			return true
		}
	}
	return false
}
