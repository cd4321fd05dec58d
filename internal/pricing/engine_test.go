package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeBelowFreeShipping(t *testing.T) {
	summary := Compute([]Item{{Qty: 2, UnitPrice: 2_500}}, nil)
	want := Summary{Subtotal: 5_000, Shipping: 1_500, Tax: 400, Discount: 0, Total: 6_900}
	if summary != want {
		t.Fatalf("expected %+v, got %+v", want, summary)
	}
}

func TestComputeAboveFreeShipping(t *testing.T) {
	summary := Compute([]Item{{Qty: 1, UnitPrice: 15_000}}, nil)
	want := Summary{Subtotal: 15_000, Shipping: 0, Tax: 1_200, Discount: 0, Total: 16_200}
	if summary != want {
		t.Fatalf("expected %+v, got %+v", want, summary)
	}
}

func TestComputeWithWelcomePromoAtThreshold(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 10_000}}
	promo, err := DefaultPromoTable.Validate("WELCOME10", Subtotal(items))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	summary := Compute(items, &promo)
	want := Summary{Subtotal: 10_000, Shipping: 1_500, Tax: 800, Discount: 1_000, Total: 11_300}
	if summary != want {
		t.Fatalf("expected %+v, got %+v", want, summary)
	}
}

func TestShippingThresholdIsStrict(t *testing.T) {
	cases := map[Money]Money{
		0:      1_500,
		9_999:  1_500,
		10_000: 1_500,
		10_001: 0,
		50_000: 0,
	}
	for subtotal, want := range cases {
		if got := Default.Shipping(subtotal); got != want {
			t.Fatalf("shipping(%d): expected %d, got %d", subtotal, want, got)
		}
	}
}

func TestTaxRoundsToMinorUnits(t *testing.T) {
	cases := map[Money]Money{
		0:     0,
		1:     0,
		6:     0,
		7:     1,
		8_900: 712,
		2_999: 240,
		3_119: 250,
	}
	for subtotal, want := range cases {
		if got := Default.Tax(subtotal); got != want {
			t.Fatalf("tax(%d): expected %d, got %d", subtotal, want, got)
		}
	}
}

func TestComputeIgnoresNonPositiveQuantities(t *testing.T) {
	summary := Compute([]Item{{Qty: 0, UnitPrice: 5_000}, {Qty: -1, UnitPrice: 5_000}, {Qty: 1, UnitPrice: 1_000}}, nil)
	if summary.Subtotal != 1_000 {
		t.Fatalf("expected subtotal 1000, got %d", summary.Subtotal)
	}
}

func TestComputeTotalIdentityAndIdempotence(t *testing.T) {
	items := []Item{{Qty: 3, UnitPrice: 8_900}, {Qty: 1, UnitPrice: 29_900}}
	promo, err := DefaultPromoTable.Validate("eoa25", Subtotal(items))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	first := Compute(items, &promo)
	second := Compute(items, &promo)
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
	if first.Total != first.Subtotal+first.Shipping+first.Tax-first.Discount {
		t.Fatalf("total identity broken: %+v", first)
	}
}

func TestComputeClampsTotalAtZero(t *testing.T) {
	promo := Promotion{Code: "OVER", Amount: 1_000_000}
	summary := Compute([]Item{{Qty: 1, UnitPrice: 1_000}}, &promo)
	if summary.Total != 0 {
		t.Fatalf("expected total clamped at 0, got %d", summary.Total)
	}
	if summary.Discount != 1_000_000 {
		t.Fatalf("expected discount reported unchanged, got %d", summary.Discount)
	}
}

func TestComputeTotalNeverNegativeForValidRates(t *testing.T) {
	rate := decimal.RequireFromString("0.99")
	for _, subtotal := range []Money{0, 1, 99, 10_000, 10_001, 1_234_567} {
		promo := Promotion{Rate: rate, Live: true}
		summary := Compute([]Item{{Qty: 1, UnitPrice: subtotal}}, &promo)
		if summary.Total < 0 {
			t.Fatalf("negative total for subtotal %d: %+v", subtotal, summary)
		}
	}
}

func TestCustomCalculator(t *testing.T) {
	calc := Calculator{TaxRate: decimal.RequireFromString("0.2"), FreeShippingOver: 5_000, FlatShipping: 500}
	summary := calc.Compute([]Item{{Qty: 1, UnitPrice: 4_000}}, nil)
	want := Summary{Subtotal: 4_000, Shipping: 500, Tax: 800, Total: 5_300}
	if summary != want {
		t.Fatalf("expected %+v, got %+v", want, summary)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		amount   Money
		currency string
		want     string
	}{
		{6_900, "EUR", "€69.00"},
		{5, "usd", "$0.05"},
		{-1_250, "GBP", "-£12.50"},
		{100, "IDR", "IDR 1.00"},
		{100, "", "1.00"},
	}
	for _, tc := range cases {
		if got := Format(tc.amount, tc.currency); got != tc.want {
			t.Fatalf("Format(%d, %q): expected %q, got %q", tc.amount, tc.currency, tc.want, got)
		}
	}
}
