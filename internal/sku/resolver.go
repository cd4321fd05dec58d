package sku

import (
	"fmt"
	"strings"
)

// completeSetMarker switches the SKU to the complete-set layout when present in the product name.
const completeSetMarker = "Complete Set"

const defaultColorCode = "BLK"

var collectionCodes = map[string]string{
	"laveira": "LV",
	"tumie":   "TM",
	"tumi":    "TM",
}

var categoryCodes = map[string]string{
	"jacket":    "JK",
	"tshirt":    "TS",
	"t-shirt":   "TS",
	"pants":     "PN",
	"short":     "SH",
	"shorts":    "SH",
	"set":       "SET",
	"set short": "SETSH",
	"set-short": "SETSH",
	"hoodie":    "HD",
}

var colorCodes = map[string]string{
	"black": "BLK",
	"white": "WHT",
	"beige": "BGE",
}

// Item carries the product attributes a SKU is derived from.
type Item struct {
	Name       string
	Collection string
	Category   string
	Color      string
	Gender     string
}

// Key is the normalized SKU tuple.
type Key struct {
	Collection  string
	Category    string
	Color       string
	Gender      string
	CompleteSet bool
}

// KeyFor maps raw item attributes onto SKU codes.
func KeyFor(item Item) Key {
	return Key{
		Collection:  CollectionCode(item.Collection),
		Category:    CategoryCode(item.Category),
		Color:       ColorCode(item.Color),
		Gender:      GenderCode(item.Gender),
		CompleteSet: strings.Contains(item.Name, completeSetMarker),
	}
}

// String renders the canonical SKU. Complete sets put gender before color.
func (k Key) String() string {
	if k.CompleteSet {
		return fmt.Sprintf("%s-COMPLETE-%s-%s", k.Collection, k.Gender, k.Color)
	}
	return fmt.Sprintf("%s-%s-%s-%s", k.Collection, k.Category, k.Color, k.Gender)
}

// Resolve derives the canonical SKU for an item.
func Resolve(item Item) string {
	return KeyFor(item).String()
}

// CollectionCode maps a collection name, falling back to its first two letters.
func CollectionCode(collection string) string {
	return lookup(collectionCodes, collection, 2)
}

// CategoryCode maps a category name, falling back to its first two letters.
func CategoryCode(category string) string {
	return lookup(categoryCodes, category, 2)
}

// ColorCode maps a color name, falling back to its first three letters. No color means black.
func ColorCode(color string) string {
	if strings.TrimSpace(color) == "" {
		return defaultColorCode
	}
	return lookup(colorCodes, color, 3)
}

// GenderCode returns F for female and M for everything else, unisex included.
func GenderCode(gender string) string {
	if strings.EqualFold(strings.TrimSpace(gender), "female") {
		return "F"
	}
	return "M"
}

func lookup(table map[string]string, value string, fallbackLen int) string {
	trimmed := strings.TrimSpace(value)
	if code, ok := table[strings.ToLower(trimmed)]; ok {
		return code
	}
	runes := []rune(strings.ToUpper(trimmed))
	if len(runes) > fallbackLen {
		runes = runes[:fallbackLen]
	}
	return string(runes)
}
