package cart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eoafashion/storefront-api/internal/pricing"
	"github.com/eoafashion/storefront-api/internal/sku"
)

var (
	// ErrNotFound indicates the requested cart could not be located.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound indicates the line item is not in the cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 99

// LineItem is one product/variant/quantity entry in a cart.
type LineItem struct {
	ID            string        `json:"id"`
	ProductID     int           `json:"productId"`
	Name          string        `json:"name"`
	UnitPrice     pricing.Money `json:"unitPrice"`
	Quantity      int           `json:"quantity"`
	SelectedSize  string        `json:"selectedSize,omitempty"`
	SelectedColor string        `json:"selectedColor,omitempty"`
	Collection    string        `json:"collection"`
	Category      string        `json:"category"`
	Gender        string        `json:"gender"`
}

// LineID derives the line key shared by identical product/size/color selections.
func LineID(productID int, size, color string) string {
	parts := []string{strconv.Itoa(productID)}
	if s := strings.ToLower(strings.TrimSpace(size)); s != "" {
		parts = append(parts, s)
	}
	if c := strings.ToLower(strings.TrimSpace(color)); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, "-")
}

// SKUItem exposes the attributes used for SKU derivation.
func (li LineItem) SKUItem() sku.Item {
	return sku.Item{
		Name:       li.Name,
		Collection: li.Collection,
		Category:   li.Category,
		Color:      li.SelectedColor,
		Gender:     li.Gender,
	}
}

// Cart holds line items and at most one applied promotion.
type Cart struct {
	ID        string             `json:"id"`
	Items     []LineItem         `json:"items"`
	Promotion *pricing.Promotion `json:"promotion,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Add appends the item or increments the quantity of a matching line.
func (c *Cart) Add(item LineItem) error {
	if item.Quantity < 1 {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	if item.Quantity > MaxQuantity {
		return fmt.Errorf("quantity exceeds %d: %w", MaxQuantity, ErrInvalidInput)
	}
	if item.UnitPrice < 0 {
		return fmt.Errorf("unit price must not be negative: %w", ErrInvalidInput)
	}
	if item.ID == "" {
		item.ID = LineID(item.ProductID, item.SelectedSize, item.SelectedColor)
	}
	for i := range c.Items {
		if c.Items[i].ID == item.ID {
			if c.Items[i].Quantity+item.Quantity > MaxQuantity {
				return fmt.Errorf("line %s would exceed %d: %w", item.ID, MaxQuantity, ErrInvalidInput)
			}
			c.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity updates a line quantity. A quantity of zero or less removes the line.
func (c *Cart) SetQuantity(lineID string, qty int) error {
	if qty <= 0 {
		return c.Remove(lineID)
	}
	if qty > MaxQuantity {
		return fmt.Errorf("quantity exceeds %d: %w", MaxQuantity, ErrInvalidInput)
	}
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			c.Items[i].Quantity = qty
			return nil
		}
	}
	return ErrItemNotFound
}

// Remove deletes a line.
func (c *Cart) Remove(lineID string) error {
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// Clear empties the cart and drops the promotion.
func (c *Cart) Clear() {
	c.Items = nil
	c.Promotion = nil
}

// ApplyPromotion replaces any previously applied promotion.
func (c *Cart) ApplyPromotion(p pricing.Promotion) {
	c.Promotion = &p
}

// RemovePromotion drops the applied promotion.
func (c *Cart) RemovePromotion() {
	c.Promotion = nil
}

// PricingItems converts line items for the pricing engine.
func (c Cart) PricingItems() []pricing.Item {
	items := make([]pricing.Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, pricing.Item{Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return items
}

// Subtotal returns the undiscounted item total.
func (c Cart) Subtotal() pricing.Money {
	return pricing.Subtotal(c.PricingItems())
}

// Totals derives the cart totals; nothing is cached on the cart.
func (c Cart) Totals(calc pricing.Calculator) pricing.Summary {
	return calc.Compute(c.PricingItems(), c.Promotion)
}

// TotalQuantity counts units across all lines.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}
