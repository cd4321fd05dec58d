package pricing

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money `json:"subtotal"`
	Shipping Money `json:"shipping"`
	Tax      Money `json:"tax"`
	Discount Money `json:"discount"`
	Total    Money `json:"total"`
}

// Calculator holds the storefront pricing policy.
type Calculator struct {
	TaxRate          decimal.Decimal
	FreeShippingOver Money
	FlatShipping     Money
}

// Default is the launch pricing policy: 8% tax, free shipping above 100.00, otherwise 15.00.
var Default = Calculator{
	TaxRate:          decimal.RequireFromString("0.08"),
	FreeShippingOver: 10_000,
	FlatShipping:     1_500,
}

// Subtotal sums unit price times quantity, skipping non-positive quantities.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Shipping returns the flat shipping fee unless the subtotal is strictly above the threshold.
func (c Calculator) Shipping(subtotal Money) Money {
	if subtotal > c.FreeShippingOver {
		return 0
	}
	return c.FlatShipping
}

// Tax applies the tax rate to the pre-discount subtotal.
func (c Calculator) Tax(subtotal Money) Money {
	return applyRate(subtotal, c.TaxRate)
}

// Compute calculates cart totals given the line items and the applied promotion, if any.
func (c Calculator) Compute(items []Item, promo *Promotion) Summary {
	subtotal := Subtotal(items)
	shipping := c.Shipping(subtotal)
	tax := c.Tax(subtotal)
	var discount Money
	if promo != nil {
		discount = promo.Discount(subtotal)
	}
	total := subtotal + shipping + tax - discount
	if total < 0 {
		total = 0
	}
	return Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}
}

// Compute runs the default calculator.
func Compute(items []Item, promo *Promotion) Summary {
	return Default.Compute(items, promo)
}

func applyRate(amount Money, rate decimal.Decimal) Money {
	if amount <= 0 || rate.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}
