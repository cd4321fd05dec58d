package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/eoafashion/storefront-api/internal/audit"
	"github.com/eoafashion/storefront-api/internal/cart"
	"github.com/eoafashion/storefront-api/internal/obs"
	"github.com/eoafashion/storefront-api/internal/payment"
	"github.com/eoafashion/storefront-api/internal/pricing"
	"github.com/eoafashion/storefront-api/internal/sku"
)

// ErrEmptyCart is returned when checkout is attempted on a cart without items.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// UnresolvedError lists every cart SKU missing from the price table.
type UnresolvedError struct {
	SKUs []string
}

func (e *UnresolvedError) Error() string {
	return "checkout: no price for " + strings.Join(e.SKUs, ", ")
}

// Unwrap exposes one *sku.UnknownSKUError per unresolved SKU.
func (e *UnresolvedError) Unwrap() []error {
	errs := make([]error, 0, len(e.SKUs))
	for _, code := range e.SKUs {
		errs = append(errs, &sku.UnknownSKUError{SKU: code})
	}
	return errs
}

// CartReader loads carts.
type CartReader interface {
	Get(ctx context.Context, cartID string) (cart.Cart, error)
}

// AuditRecorder receives one record per checkout attempt.
type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Locker serialises checkouts of the same cart.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service turns carts into hosted checkout sessions.
type Service struct {
	Carts      CartReader
	Sessions   payment.SessionCreator
	Prices     sku.PriceTable
	Calc       *pricing.Calculator
	Audit      AuditRecorder
	Lock       Locker
	LockTTL    time.Duration
	Currency   string
	SuccessURL string
	CancelURL  string
	Logger     zerolog.Logger
	// Totals records checkout grand totals in minor units when set.
	Totals metric.Int64Histogram
}

// Line is one resolved checkout line.
type Line struct {
	SKU       string        `json:"sku"`
	PriceID   string        `json:"priceId"`
	Quantity  int           `json:"quantity"`
	UnitPrice pricing.Money `json:"unitPrice"`
}

// Output is returned after a session was created.
type Output struct {
	URL       string          `json:"url"`
	SessionID string          `json:"sessionId,omitempty"`
	Summary   pricing.Summary `json:"summary"`
	Lines     []Line          `json:"lines"`
}

// NewTotalsHistogram builds the histogram used for Service.Totals.
func NewTotalsHistogram(meter metric.Meter) (metric.Int64Histogram, error) {
	return meter.Int64Histogram("checkout.order_total",
		metric.WithDescription("Grand total of checkouts handed to the payment processor."),
		metric.WithUnit("{minor_unit}"),
	)
}

func (s *Service) calc() pricing.Calculator {
	if s.Calc != nil {
		return *s.Calc
	}
	return pricing.Default
}

func (s *Service) prices() sku.PriceTable {
	if len(s.Prices) > 0 {
		return s.Prices
	}
	return sku.DefaultPriceTable
}

// Create resolves the cart and opens a checkout session. The cart itself is
// never modified, whether the session is created or not.
func (s *Service) Create(ctx context.Context, cartID string) (Output, error) {
	if s == nil || s.Carts == nil || s.Sessions == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout").Start(ctx, "checkout.create")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", cartID))

	var out Output
	run := func(ctx context.Context) error {
		var err error
		out, err = s.create(ctx, cartID)
		return err
	}
	var err error
	if s.Lock != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		err = s.Lock.WithLock(ctx, "checkout:lock:"+cartID, ttl, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return Output{}, err
	}
	return out, nil
}

func (s *Service) create(ctx context.Context, cartID string) (Output, error) {
	c, err := s.Carts.Get(ctx, cartID)
	if err != nil {
		return Output{}, err
	}
	if len(c.Items) == 0 {
		countSession("empty")
		return Output{}, ErrEmptyCart
	}
	summary := c.Totals(s.calc())
	rec := audit.Record{
		CartID:   c.ID,
		Currency: s.Currency,
		Subtotal: summary.Subtotal,
		Shipping: summary.Shipping,
		Tax:      summary.Tax,
		Discount: summary.Discount,
		Total:    summary.Total,
	}
	if c.Promotion != nil {
		rec.PromoCode = c.Promotion.Code
	}

	lines, unresolved := s.resolve(c)
	for _, l := range lines {
		rec.Items = append(rec.Items, audit.Item{SKU: l.SKU, PriceID: l.PriceID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	if len(unresolved) > 0 {
		err := &UnresolvedError{SKUs: unresolved}
		countSession("unknown_sku")
		s.Logger.Warn().Str("cart_id", c.ID).Strs("skus", unresolved).Msg("checkout_unknown_sku")
		rec.Status = audit.StatusUnknownSKU
		rec.Error = err.Error()
		s.record(ctx, rec)
		return Output{}, err
	}

	md, err := metadata(c, summary)
	if err != nil {
		return Output{}, fmt.Errorf("checkout metadata: %w", err)
	}
	req := payment.SessionRequest{
		LineItems:  make([]payment.SessionLineItem, 0, len(lines)),
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
		Metadata:   md,
	}
	for _, l := range lines {
		req.LineItems = append(req.LineItems, payment.SessionLineItem{Price: l.PriceID, Quantity: l.Quantity})
	}

	start := time.Now()
	session, err := s.Sessions.CreateSession(ctx, req)
	elapsed := obs.DurationMillis(time.Since(start))
	if err != nil {
		countSession("transport_error")
		observeLatency("error", elapsed)
		rec.Status = audit.StatusFailed
		rec.Error = err.Error()
		s.record(ctx, rec)
		return Output{}, err
	}
	countSession("created")
	observeLatency("created", elapsed)
	if s.Totals != nil {
		s.Totals.Record(ctx, summary.Total, metric.WithAttributes(attribute.String("currency", s.Currency)))
	}
	s.Logger.Info().
		Str("cart_id", c.ID).
		Str("session_id", session.ID).
		Int64("total", summary.Total).
		Int("lines", len(lines)).
		Msg("checkout_session_created")

	rec.Status = audit.StatusCreated
	rec.SessionID = session.ID
	rec.RedirectURL = session.URL
	s.record(ctx, rec)

	return Output{URL: session.URL, SessionID: session.ID, Summary: summary, Lines: lines}, nil
}

// resolve maps every line to a price identifier, sequentially. Lines whose SKU
// is unknown are reported by SKU and never substituted.
func (s *Service) resolve(c cart.Cart) ([]Line, []string) {
	table := s.prices()
	lines := make([]Line, 0, len(c.Items))
	var unresolved []string
	for _, it := range c.Items {
		code := sku.Resolve(it.SKUItem())
		priceID, err := table.PriceID(code)
		if err != nil {
			if obs.UnknownSKUTotal != nil {
				obs.UnknownSKUTotal.WithLabelValues(sku.CollectionCode(it.Collection)).Inc()
			}
			unresolved = append(unresolved, code)
			continue
		}
		lines = append(lines, Line{SKU: code, PriceID: priceID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return lines, unresolved
}

type itemDescriptor struct {
	ProductID int    `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

func metadata(c cart.Cart, summary pricing.Summary) (map[string]string, error) {
	items := make([]itemDescriptor, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, itemDescriptor{ProductID: it.ProductID, Quantity: it.Quantity, Size: it.SelectedSize, Color: it.SelectedColor})
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	md := map[string]string{
		"cart_id":  c.ID,
		"discount": strconv.FormatInt(summary.Discount, 10),
		"items":    string(encoded),
	}
	if c.Promotion != nil {
		md["promo_code"] = c.Promotion.Code
	}
	return md, nil
}

func (s *Service) record(ctx context.Context, rec audit.Record) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, rec); err != nil {
		s.Logger.Error().Err(err).Str("cart_id", rec.CartID).Msg("checkout_audit_enqueue_failed")
	}
}

func countSession(result string) {
	if obs.CheckoutSessionTotal != nil {
		obs.CheckoutSessionTotal.WithLabelValues(result).Inc()
	}
}

func observeLatency(result string, ms float64) {
	if obs.CheckoutSessionLatency != nil {
		obs.CheckoutSessionLatency.WithLabelValues(result).Observe(ms)
	}
}

// describe renders a human readable reason for API responses.
func describe(err error) string {
	var unresolved *UnresolvedError
	if errors.As(err, &unresolved) {
		return fmt.Sprintf("%d item(s) cannot be checked out", len(unresolved.SKUs))
	}
	return err.Error()
}
