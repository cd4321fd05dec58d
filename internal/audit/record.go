// Package audit records every checkout attempt. The API enqueues records on an
// asynq queue and cmd/worker writes them to PostgreSQL.
package audit

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status describes the outcome of a checkout attempt.
type Status string

const (
	StatusCreated    Status = "created"
	StatusUnknownSKU Status = "unknown_sku"
	StatusFailed     Status = "failed"
)

// Item is one resolved line of a checkout.
type Item struct {
	SKU       string `json:"sku"`
	PriceID   string `json:"priceId,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// Record is the persisted trace of a checkout attempt.
type Record struct {
	ID          string    `json:"id"`
	CartID      string    `json:"cartId"`
	SessionID   string    `json:"sessionId,omitempty"`
	Status      Status    `json:"status"`
	RedirectURL string    `json:"redirectUrl,omitempty"`
	Currency    string    `json:"currency"`
	Subtotal    int64     `json:"subtotal"`
	Shipping    int64     `json:"shipping"`
	Tax         int64     `json:"tax"`
	Discount    int64     `json:"discount"`
	Total       int64     `json:"total"`
	PromoCode   string    `json:"promoCode,omitempty"`
	Items       []Item    `json:"items"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Normalize fills defaults and checks required fields.
func (r *Record) Normalize(now time.Time) error {
	r.CartID = strings.TrimSpace(r.CartID)
	if r.CartID == "" {
		return errors.New("audit: cart id is required")
	}
	if r.Status == "" {
		return errors.New("audit: status is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now.UTC()
	}
	if r.Items == nil {
		r.Items = []Item{}
	}
	return nil
}
