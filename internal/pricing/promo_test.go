package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateIsCaseInsensitive(t *testing.T) {
	promo, err := DefaultPromoTable.Validate("  welcome10 ", 10_000)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if promo.Code != "WELCOME10" {
		t.Fatalf("expected normalized code, got %q", promo.Code)
	}
	if promo.Amount != 1_000 {
		t.Fatalf("expected snapshot amount 1000, got %d", promo.Amount)
	}
	if promo.AppliedSubtotal != 10_000 {
		t.Fatalf("expected applied subtotal 10000, got %d", promo.AppliedSubtotal)
	}
}

func TestValidateUnknownCode(t *testing.T) {
	for _, code := range []string{"bogus", "", "   ", "WELCOME"} {
		_, err := DefaultPromoTable.Validate(code, 10_000)
		if !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("code %q: expected ErrInvalidCode, got %v", code, err)
		}
	}
}

func TestSnapshotDiscountIsFrozen(t *testing.T) {
	promo, err := DefaultPromoTable.Validate("FAITH20", 10_000)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := promo.Discount(50_000); got != 2_000 {
		t.Fatalf("expected frozen discount 2000, got %d", got)
	}
}

func TestLiveDiscountFollowsSubtotal(t *testing.T) {
	promo, err := DefaultPromoTable.Validate("FAITH20", 10_000)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	promo.Live = true
	if got := promo.Discount(50_000); got != 10_000 {
		t.Fatalf("expected live discount 10000, got %d", got)
	}
}

func TestNewPromoTable(t *testing.T) {
	table, err := NewPromoTable(map[string]string{"summer5": "0.05"})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if !table["SUMMER5"].Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("unexpected table %#v", table)
	}

	if _, err := NewPromoTable(map[string]string{"FREE": "1"}); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate for 1, got %v", err)
	}
	if _, err := NewPromoTable(map[string]string{"NEG": "-0.1"}); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate for negative rate, got %v", err)
	}
	if _, err := NewPromoTable(map[string]string{"BAD": "ten"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultPromoTableRatesInRange(t *testing.T) {
	one := decimal.NewFromInt(1)
	for code, rate := range DefaultPromoTable {
		if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
			t.Fatalf("%s rate out of range: %s", code, rate)
		}
	}
}
