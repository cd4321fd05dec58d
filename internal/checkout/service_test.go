package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eoafashion/storefront-api/internal/audit"
	"github.com/eoafashion/storefront-api/internal/cart"
	"github.com/eoafashion/storefront-api/internal/checkout"
	"github.com/eoafashion/storefront-api/internal/payment"
	"github.com/eoafashion/storefront-api/internal/payment/paymenttest"
	"github.com/eoafashion/storefront-api/internal/pricing"
	"github.com/eoafashion/storefront-api/internal/sku"
)

type recorder struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (r *recorder) Record(_ context.Context, rec audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func (r *recorder) all() []audit.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Record(nil), r.records...)
}

type fixture struct {
	carts    *cart.Service
	sessions *paymenttest.Fake
	audit    *recorder
	svc      *checkout.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	carts := &cart.Service{
		Store:  cart.NewMemoryStore(time.Hour),
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return now },
		NewID:  func() string { return "cart-1" },
	}
	_, err := carts.Create(context.Background())
	require.NoError(t, err)

	fake := &paymenttest.Fake{}
	rec := &recorder{}
	return fixture{
		carts:    carts,
		sessions: fake,
		audit:    rec,
		svc: &checkout.Service{
			Carts:      carts,
			Sessions:   fake,
			Audit:      rec,
			Currency:   "EUR",
			SuccessURL: "https://eoa.test/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  "https://eoa.test/cart",
			Logger:     zerolog.Nop(),
		},
	}
}

func (f fixture) add(t *testing.T, productID, qty int, size, color string) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), "cart-1", cart.AddItemInput{ProductID: productID, Quantity: qty, Size: size, Color: color})
	require.NoError(t, err)
}

func TestCreateSessionResolvesEveryLine(t *testing.T) {
	f := newFixture(t)
	f.add(t, 2001, 1, "M", "beige")
	f.add(t, 1001, 2, "S", "")
	_, err := f.carts.ApplyPromo(context.Background(), "cart-1", "WELCOME10")
	require.NoError(t, err)

	out, err := f.svc.Create(context.Background(), "cart-1")
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", out.SessionID)
	require.Equal(t, "https://checkout.test/session/cs_test_1", out.URL)
	require.Equal(t, pricing.Money(47700), out.Summary.Subtotal)
	require.Equal(t, pricing.Money(0), out.Summary.Shipping)
	require.Equal(t, pricing.Money(3816), out.Summary.Tax)
	require.Equal(t, pricing.Money(4770), out.Summary.Discount)
	require.Equal(t, pricing.Money(46746), out.Summary.Total)

	req, ok := f.sessions.Last()
	require.True(t, ok)
	require.Equal(t, []payment.SessionLineItem{
		{Price: "price_1234567891", Quantity: 1},
		{Price: "price_1234567906", Quantity: 2},
	}, req.LineItems)
	require.Equal(t, "https://eoa.test/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	require.Equal(t, "cart-1", req.Metadata["cart_id"])
	require.Equal(t, "WELCOME10", req.Metadata["promo_code"])
	require.Equal(t, "4770", req.Metadata["discount"])

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Metadata["items"]), &items))
	require.Len(t, items, 2)
	require.EqualValues(t, 2001, items[0]["productId"])

	records := f.audit.all()
	require.Len(t, records, 1)
	require.Equal(t, audit.StatusCreated, records[0].Status)
	require.Equal(t, "cs_test_1", records[0].SessionID)
	require.Equal(t, int64(46746), records[0].Total)
	require.Len(t, records[0].Items, 2)

	c, err := f.carts.Get(context.Background(), "cart-1")
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	require.NotNil(t, c.Promotion)
}

func TestCreateSessionUnknownSKUBlocksCheckout(t *testing.T) {
	f := newFixture(t)
	f.svc.Prices = sku.PriceTable{"LV-JK-BGE-F": "price_1234567891"}
	f.add(t, 2001, 1, "M", "beige")
	f.add(t, 1007, 1, "L", "")
	f.add(t, 1002, 1, "M", "beige")

	_, err := f.svc.Create(context.Background(), "cart-1")
	require.ErrorIs(t, err, sku.ErrUnknownSKU)

	var unresolved *checkout.UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	require.Equal(t, []string{"TM-HD-BLK-F", "TM-TS-BGE-M"}, unresolved.SKUs)
	require.Zero(t, f.sessions.Calls())

	records := f.audit.all()
	require.Len(t, records, 1)
	require.Equal(t, audit.StatusUnknownSKU, records[0].Status)
}

func TestCreateSessionEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "cart-1")
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	require.Zero(t, f.sessions.Calls())
	require.Empty(t, f.audit.all())
}

func TestCreateSessionTransportFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.add(t, 1005, 1, "M", "")
	f.sessions.Err = &payment.TransportError{StatusCode: 503, Reason: "upstream unavailable"}

	_, err := f.svc.Create(context.Background(), "cart-1")
	require.ErrorIs(t, err, payment.ErrTransport)

	c, err := f.carts.Get(context.Background(), "cart-1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	records := f.audit.all()
	require.Len(t, records, 1)
	require.Equal(t, audit.StatusFailed, records[0].Status)
	require.NotEmpty(t, records[0].Error)
}

func TestCreateSessionAuditFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.add(t, 1003, 1, "S", "")
	f.audit.err = errors.New("queue down")

	out, err := f.svc.Create(context.Background(), "cart-1")
	require.NoError(t, err)
	require.NotEmpty(t, out.URL)
}

func TestCreateSessionUnknownCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "missing")
	require.ErrorIs(t, err, cart.ErrNotFound)
}
