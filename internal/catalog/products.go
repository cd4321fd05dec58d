package catalog

import (
	"sort"
	"strings"

	"github.com/eoafashion/storefront-api/internal/pricing"
)

// Product is a purchasable catalog entry.
type Product struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	Price      pricing.Money `json:"price"`
	Collection string        `json:"collection"`
	Category   string        `json:"category"`
	Gender     string        `json:"gender"`
	Sizes      []string      `json:"sizes"`
	Colors     []string      `json:"colors"`
	IsNew      bool          `json:"isNew,omitempty"`
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Collection string
	Category   string
	Gender     string
}

var apparelSizes = []string{"XS", "S", "M", "L", "XL"}

var products = []Product{
	{ID: 1001, Name: "TUMIE Essential Tee", Price: 8_900, Collection: "tumie", Category: "tshirt", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 1002, Name: "TUMIE Essential Tee", Price: 8_900, Collection: "tumie", Category: "tshirt", Gender: "male", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 1003, Name: "TUMIE Classic Pants", Price: 14_900, Collection: "tumie", Category: "pants", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black"}},
	{ID: 1004, Name: "TUMIE Classic Pants", Price: 14_900, Collection: "tumie", Category: "pants", Gender: "male", Sizes: apparelSizes, Colors: []string{"Black"}},
	{ID: 1005, Name: "TUMIE Jacket", Price: 24_900, Collection: "tumie", Category: "jacket", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 1006, Name: "TUMIE Jacket", Price: 24_900, Collection: "tumie", Category: "jacket", Gender: "male", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 1007, Name: "TUMIE Set Hoodie", Price: 11_900, Collection: "tumie", Category: "hoodie", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black"}},
	{ID: 1008, Name: "TUMIE Set Hoodie", Price: 11_900, Collection: "tumie", Category: "hoodie", Gender: "male", Sizes: apparelSizes, Colors: []string{"Black"}},
	{ID: 1009, Name: "TUMI Complete Set", Price: 44_900, Collection: "tumie", Category: "set", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black"}, IsNew: true},
	{ID: 1010, Name: "TUMI Complete Set", Price: 44_900, Collection: "tumie", Category: "set", Gender: "male", Sizes: apparelSizes, Colors: []string{"Black"}, IsNew: true},
	{ID: 2001, Name: "LA VEIRA Luxury Jacket", Price: 29_900, Collection: "laveira", Category: "jacket", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 2002, Name: "LA VEIRA Luxury Jacket", Price: 29_900, Collection: "laveira", Category: "jacket", Gender: "male", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 2003, Name: "LA VEIRA Tailored Short", Price: 12_900, Collection: "laveira", Category: "short", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 2004, Name: "LA VEIRA Tailored Short", Price: 12_900, Collection: "laveira", Category: "short", Gender: "male", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 2005, Name: "LA VEIRA Set", Price: 34_900, Collection: "laveira", Category: "set", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}},
	{ID: 2006, Name: "LA VEIRA Set Short", Price: 39_900, Collection: "laveira", Category: "set short", Gender: "female", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}, IsNew: true},
	{ID: 2007, Name: "LA VEIRA Set Short", Price: 39_900, Collection: "laveira", Category: "set short", Gender: "male", Sizes: apparelSizes, Colors: []string{"Black", "Beige"}, IsNew: true},
}

var byID = func() map[int]Product {
	m := make(map[int]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}()

// Find returns the product with the given id.
func Find(id int) (Product, bool) {
	p, ok := byID[id]
	return p, ok
}

// List returns products matching the filter ordered by id.
func List(f Filter) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if !matches(f.Collection, p.Collection) || !matches(f.Category, p.Category) || !matches(f.Gender, p.Gender) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasSize reports whether size is offered, ignoring case.
func (p Product) HasSize(size string) bool {
	return indexFold(p.Sizes, size) >= 0
}

// ColorFor returns the catalog spelling of color, or the default color when empty.
func (p Product) ColorFor(color string) (string, bool) {
	trimmed := strings.TrimSpace(color)
	if trimmed == "" {
		if len(p.Colors) == 0 {
			return "", true
		}
		return p.Colors[0], true
	}
	idx := indexFold(p.Colors, trimmed)
	if idx < 0 {
		return "", false
	}
	return p.Colors[idx], true
}

func matches(want, have string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, have)
}

func indexFold(values []string, v string) int {
	v = strings.TrimSpace(v)
	for i, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return i
		}
	}
	return -1
}
