package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eoafashion/storefront-api/internal/catalog"
	"github.com/eoafashion/storefront-api/internal/common"
	"github.com/eoafashion/storefront-api/internal/obs"
	"github.com/eoafashion/storefront-api/internal/pricing"
)

// Service encapsulates cart domain operations.
type Service struct {
	Store      Store
	Promos     pricing.PromoTable
	Calc       *pricing.Calculator
	LivePromos bool
	Logger     zerolog.Logger
	Now        func() time.Time
	NewID      func() string
	Lookup     func(id int) (catalog.Product, bool)
}

// AddItemInput describes a product selection.
type AddItemInput struct {
	ProductID int    `json:"productId" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
	Size      string `json:"size" validate:"omitempty,max=8"`
	Color     string `json:"color" validate:"omitempty,max=32"`
}

// Quote pairs a cart with its derived totals.
type Quote struct {
	Cart    Cart            `json:"cart"`
	Summary pricing.Summary `json:"summary"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s != nil && s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) calc() pricing.Calculator {
	if s != nil && s.Calc != nil {
		return *s.Calc
	}
	return pricing.Default
}

func (s *Service) promos() pricing.PromoTable {
	if s != nil && len(s.Promos) > 0 {
		return s.Promos
	}
	return pricing.DefaultPromoTable
}

func (s *Service) lookup(id int) (catalog.Product, bool) {
	if s != nil && s.Lookup != nil {
		return s.Lookup(id)
	}
	return catalog.Find(id)
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	now := s.now().UTC()
	c := Cart{ID: s.newID(), Items: []LineItem{}, CreatedAt: now, UpdatedAt: now}
	if err := s.Store.Create(ctx, c); err != nil {
		return Cart{}, fmt.Errorf("create cart: %w", err)
	}
	countMutation("create")
	return c, nil
}

// Get loads a cart.
func (s *Service) Get(ctx context.Context, cartID string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	return s.Store.Get(ctx, cartID)
}

// Quote loads a cart and derives its totals.
func (s *Service) Quote(ctx context.Context, cartID string) (Quote, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return Quote{}, err
	}
	return s.QuoteFor(c), nil
}

// QuoteFor derives totals for an already loaded cart.
func (s *Service) QuoteFor(c Cart) Quote {
	return Quote{Cart: c, Summary: c.Totals(s.calc())}
}

// NewLineItem builds a line item for a catalog selection.
func (s *Service) NewLineItem(in AddItemInput) (LineItem, error) {
	product, ok := s.lookup(in.ProductID)
	if !ok {
		return LineItem{}, common.NewAppError("PRODUCT_NOT_FOUND", "product not found", http.StatusNotFound, ErrNotFound)
	}
	size := strings.TrimSpace(in.Size)
	if len(product.Sizes) > 0 {
		if size == "" {
			return LineItem{}, fmt.Errorf("size is required for %s: %w", product.Name, ErrInvalidInput)
		}
		if !product.HasSize(size) {
			return LineItem{}, fmt.Errorf("size %q not offered for %s: %w", size, product.Name, ErrInvalidInput)
		}
		size = strings.ToUpper(size)
	}
	color, ok := product.ColorFor(in.Color)
	if !ok {
		return LineItem{}, fmt.Errorf("color %q not offered for %s: %w", in.Color, product.Name, ErrInvalidInput)
	}
	return LineItem{
		ID:            LineID(product.ID, size, color),
		ProductID:     product.ID,
		Name:          product.Name,
		UnitPrice:     product.Price,
		Quantity:      in.Quantity,
		SelectedSize:  size,
		SelectedColor: color,
		Collection:    product.Collection,
		Category:      product.Category,
		Gender:        product.Gender,
	}, nil
}

// AddItem adds a catalog selection or increments the matching line.
func (s *Service) AddItem(ctx context.Context, cartID string, in AddItemInput) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	item, err := s.NewLineItem(in)
	if err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, cartID, "add_item", func(c *Cart) error {
		return c.Add(item)
	})
}

// UpdateQuantity sets a line quantity; zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, cartID, lineID string, qty int) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, cartID, "update_quantity", func(c *Cart) error {
		return c.SetQuantity(lineID, qty)
	})
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, cartID, lineID string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, cartID, "remove_item", func(c *Cart) error {
		return c.Remove(lineID)
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, cartID string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, cartID, "clear", func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// ApplyPromo validates the code against the current subtotal and stores the
// resulting promotion. An invalid code leaves the cart unchanged.
func (s *Service) ApplyPromo(ctx context.Context, cartID, code string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	var applied pricing.Promotion
	c, err := s.mutate(ctx, cartID, "apply_promo", func(c *Cart) error {
		promo, err := s.promos().Validate(code, c.Subtotal())
		if err != nil {
			return err
		}
		promo.Live = s.LivePromos
		c.ApplyPromotion(promo)
		applied = promo
		return nil
	})
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidCode) {
			if obs.PromoApplyTotal != nil {
				obs.PromoApplyTotal.WithLabelValues("invalid").Inc()
			}
			s.Logger.Info().Str("cart_id", cartID).Str("code", pricing.NormalizeCode(code)).Msg("promo_rejected")
		}
		return Cart{}, err
	}
	if obs.PromoApplyTotal != nil {
		obs.PromoApplyTotal.WithLabelValues("applied").Inc()
	}
	s.Logger.Info().
		Str("cart_id", cartID).
		Str("code", applied.Code).
		Int64("discount", applied.Amount).
		Bool("live", applied.Live).
		Msg("promo_applied")
	return c, nil
}

// RemovePromo drops the applied promotion.
func (s *Service) RemovePromo(ctx context.Context, cartID string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, cartID, "remove_promo", func(c *Cart) error {
		c.RemovePromotion()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, cartID, op string, fn func(*Cart) error) (Cart, error) {
	c, err := s.Store.Update(ctx, cartID, func(c *Cart) error {
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	countMutation(op)
	return c, nil
}

func countMutation(op string) {
	if obs.CartMutationsTotal != nil {
		obs.CartMutationsTotal.WithLabelValues(op).Inc()
	}
}
