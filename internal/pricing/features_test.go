package pricing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"github.com/eoafashion/storefront-api/internal/pricing"
	"github.com/eoafashion/storefront-api/internal/sku"
)

type pricingTestContext struct {
	items   []pricing.Item
	promo   *pricing.Promotion
	summary pricing.Summary
	item    sku.Item
	sku     string
	err     error
}

func (c *pricingTestContext) reset() {
	*c = pricingTestContext{}
}

func (c *pricingTestContext) aCartWithSubtotal(subtotal int) error {
	c.items = []pricing.Item{{Qty: 1, UnitPrice: pricing.Money(subtotal)}}
	return nil
}

func (c *pricingTestContext) thePromoCodeIsApplied(code string) error {
	p, err := pricing.DefaultPromoTable.Validate(code, pricing.Subtotal(c.items))
	if err != nil {
		c.err = err
		return nil
	}
	c.err = nil
	c.promo = &p
	return nil
}

func (c *pricingTestContext) theCartIsPriced() error {
	c.summary = pricing.Compute(c.items, c.promo)
	return nil
}

func (c *pricingTestContext) thePromoIsRejectedAsInvalid() error {
	if !errors.Is(c.err, pricing.ErrInvalidCode) {
		return fmt.Errorf("expected invalid promo code, got %v", c.err)
	}
	return c.theCartIsPriced()
}

func expectMoney(name string, got pricing.Money, want int) error {
	if got != pricing.Money(want) {
		return fmt.Errorf("%s: expected %d, got %d", name, want, got)
	}
	return nil
}

func (c *pricingTestContext) shippingIs(v int) error { return expectMoney("shipping", c.summary.Shipping, v) }
func (c *pricingTestContext) taxIs(v int) error      { return expectMoney("tax", c.summary.Tax, v) }
func (c *pricingTestContext) discountIs(v int) error { return expectMoney("discount", c.summary.Discount, v) }
func (c *pricingTestContext) totalIs(v int) error    { return expectMoney("total", c.summary.Total, v) }

func (c *pricingTestContext) anItem(name, collection, category, color, gender string) error {
	c.item = sku.Item{Name: name, Collection: collection, Category: category, Color: color, Gender: gender}
	return nil
}

func (c *pricingTestContext) theSKUIsResolved() error {
	c.sku = sku.Resolve(c.item)
	return nil
}

func (c *pricingTestContext) theSKUIs(want string) error {
	if c.sku != want {
		return fmt.Errorf("expected sku %q, got %q", want, c.sku)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &pricingTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^a cart with subtotal (\d+)$`, tc.aCartWithSubtotal)
	ctx.Step(`^the promo code "([^"]*)" is applied$`, tc.thePromoCodeIsApplied)
	ctx.Step(`^an item named "([^"]*)" from collection "([^"]*)" category "([^"]*)" color "([^"]*)" gender "([^"]*)"$`, tc.anItem)

	ctx.Step(`^the cart is priced$`, tc.theCartIsPriced)
	ctx.Step(`^the SKU is resolved$`, tc.theSKUIsResolved)

	ctx.Step(`^shipping is (\d+)$`, tc.shippingIs)
	ctx.Step(`^tax is (\d+)$`, tc.taxIs)
	ctx.Step(`^discount is (\d+)$`, tc.discountIs)
	ctx.Step(`^the total is (\d+)$`, tc.totalIs)
	ctx.Step(`^the SKU is "([^"]*)"$`, tc.theSKUIs)
	ctx.Step(`^the promo is rejected as invalid$`, tc.thePromoIsRejectedAsInvalid)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/pricing.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
