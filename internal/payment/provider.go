package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransport marks failures reaching the checkout session endpoint. Callers
// may retry; no cart state is changed by a failed attempt.
var ErrTransport = errors.New("payment: checkout session transport failure")

// SessionLineItem pairs a processor price identifier with a quantity.
type SessionLineItem struct {
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// SessionRequest is the body sent to the checkout session endpoint.
type SessionRequest struct {
	LineItems  []SessionLineItem `json:"line_items"`
	SuccessURL string            `json:"success_url,omitempty"`
	CancelURL  string            `json:"cancel_url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SessionResponse carries the hosted checkout redirect.
type SessionResponse struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

// SessionCreator opens hosted checkout sessions.
type SessionCreator interface {
	CreateSession(ctx context.Context, req SessionRequest) (SessionResponse, error)
}

// TransportError describes why a session could not be created.
type TransportError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("payment: checkout session endpoint returned %d: %s", e.StatusCode, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("payment: %s: %v", e.Reason, e.Err)
	default:
		return "payment: " + e.Reason
	}
}

// Unwrap exposes the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
