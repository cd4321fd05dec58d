package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCode is returned when a submitted promo code is not in the promo table.
	ErrInvalidCode = errors.New("invalid promo code")
	// ErrInvalidRate indicates a promo table entry outside [0, 1).
	ErrInvalidRate = errors.New("promo rate must be within [0, 1)")
)

// Promotion is a validated promo code attached to a cart.
type Promotion struct {
	Code            string          `json:"code"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          Money           `json:"amount"`
	AppliedSubtotal Money           `json:"appliedSubtotal"`
	// Live recomputes the discount against the current subtotal instead of the
	// amount captured when the code was applied.
	Live bool `json:"live,omitempty"`
}

// Discount returns the discount granted for the provided subtotal.
func (p Promotion) Discount(subtotal Money) Money {
	if p.Live {
		return applyRate(subtotal, p.Rate)
	}
	if p.Amount < 0 {
		return 0
	}
	return p.Amount
}

// PromoTable maps upper-cased promo codes to discount rates.
type PromoTable map[string]decimal.Decimal

// DefaultPromoTable lists the launch promo codes.
var DefaultPromoTable = PromoTable{
	"WELCOME10":   decimal.RequireFromString("0.10"),
	"FAITH20":     decimal.RequireFromString("0.20"),
	"NEWCUSTOMER": decimal.RequireFromString("0.15"),
	"EOA25":       decimal.RequireFromString("0.25"),
}

// NewPromoTable parses code/rate pairs, rejecting rates outside [0, 1).
func NewPromoTable(entries map[string]string) (PromoTable, error) {
	table := make(PromoTable, len(entries))
	for code, raw := range entries {
		normalized := NormalizeCode(code)
		if normalized == "" {
			return nil, fmt.Errorf("promo code required: %w", ErrInvalidCode)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse rate for %s: %w", normalized, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("%s: %w", normalized, ErrInvalidRate)
		}
		table[normalized] = rate
	}
	return table, nil
}

// NormalizeCode trims and upper-cases a submitted code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate looks up the code and snapshots the discount against the given subtotal.
func (t PromoTable) Validate(code string, subtotal Money) (Promotion, error) {
	normalized := NormalizeCode(code)
	rate, ok := t[normalized]
	if normalized == "" || !ok {
		return Promotion{}, ErrInvalidCode
	}
	return Promotion{
		Code:            normalized,
		Rate:            rate,
		Amount:          applyRate(subtotal, rate),
		AppliedSubtotal: subtotal,
	}, nil
}
