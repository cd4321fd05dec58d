// Package paymenttest provides a simulated checkout session creator for tests.
package paymenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/eoafashion/storefront-api/internal/payment"
)

// Fake records session requests and answers with a deterministic redirect.
type Fake struct {
	mu       sync.Mutex
	Requests []payment.SessionRequest
	// Err, when set, is returned instead of a session.
	Err     error
	BaseURL string
}

// CreateSession implements payment.SessionCreator.
func (f *Fake) CreateSession(_ context.Context, req payment.SessionRequest) (payment.SessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return payment.SessionResponse{}, f.Err
	}
	base := f.BaseURL
	if base == "" {
		base = "https://checkout.test/session"
	}
	id := fmt.Sprintf("cs_test_%d", len(f.Requests))
	return payment.SessionResponse{ID: id, URL: base + "/" + id}, nil
}

// Calls returns the number of sessions requested so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// Last returns the most recent request.
func (f *Fake) Last() (payment.SessionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return payment.SessionRequest{}, false
	}
	return f.Requests[len(f.Requests)-1], true
}
