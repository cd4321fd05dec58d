package sku

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownSKU is returned when a SKU has no price identifier.
var ErrUnknownSKU = errors.New("unknown sku")

// UnknownSKUError names the SKU missing from the price table.
type UnknownSKUError struct {
	SKU string
}

func (e *UnknownSKUError) Error() string {
	return fmt.Sprintf("unknown sku %q", e.SKU)
}

// Is reports ErrUnknownSKU equivalence for errors.Is.
func (e *UnknownSKUError) Is(target error) bool {
	return target == ErrUnknownSKU
}

// PriceTable maps SKUs to payment processor price identifiers.
type PriceTable map[string]string

// DefaultPriceTable is the launch price list.
var DefaultPriceTable = PriceTable{
	// LA VEIRA, women
	"LV-JK-BLK-F":    "price_1234567890",
	"LV-JK-BGE-F":    "price_1234567891",
	"LV-SH-BLK-F":    "price_1234567892",
	"LV-SH-BGE-F":    "price_1234567893",
	"LV-SET-BLK-F":   "price_1234567894",
	"LV-SET-BGE-F":   "price_1234567895",
	"LV-SETSH-BLK-F": "price_1234567896",
	"LV-SETSH-BGE-F": "price_1234567897",

	// LA VEIRA, men
	"LV-JK-BLK-M":    "price_1234567898",
	"LV-JK-BGE-M":    "price_1234567899",
	"LV-SH-BLK-M":    "price_1234567900",
	"LV-SH-BGE-M":    "price_1234567901",
	"LV-SETSH-BLK-M": "price_1234567902",
	"LV-SETSH-BGE-M": "price_1234567903",

	// TUMIE, women
	"TM-JK-BLK-F":       "price_1234567904",
	"TM-JK-BGE-F":       "price_1234567905",
	"TM-TS-BLK-F":       "price_1234567906",
	"TM-TS-BGE-F":       "price_1234567907",
	"TM-PN-BLK-F":       "price_1234567908",
	"TM-HD-BLK-F":       "price_1234567909", // set hoodie
	"TM-COMPLETE-F-BLK": "price_1234567910",

	// TUMIE, men
	"TM-JK-BLK-M":       "price_1234567911",
	"TM-JK-BGE-M":       "price_1234567912",
	"TM-TS-BLK-M":       "price_1234567913",
	"TM-TS-BGE-M":       "price_1234567914",
	"TM-PN-BLK-M":       "price_1234567915",
	"TM-HD-BLK-M":       "price_1234567916", // set hoodie
	"TM-COMPLETE-M-BLK": "price_1234567917",
}

// PriceID resolves the price identifier for a SKU.
func (t PriceTable) PriceID(sku string) (string, error) {
	id, ok := t[sku]
	if !ok || id == "" {
		return "", &UnknownSKUError{SKU: sku}
	}
	return id, nil
}

// SKUs lists the table keys in lexical order.
func (t PriceTable) SKUs() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
