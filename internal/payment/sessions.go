package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/eoafashion/storefront-api/internal/resilience"
)

const maxResponseBytes = 1 << 20

// HTTPSessions creates checkout sessions by POSTing JSON to an external endpoint.
type HTTPSessions struct {
	Endpoint string
	APIKey   string
	HTTP     *resilience.HTTPClient
	Logger   zerolog.Logger
}

// CreateSession implements SessionCreator.
func (s HTTPSessions) CreateSession(ctx context.Context, in SessionRequest) (SessionResponse, error) {
	ctx, span := otel.Tracer("payment.sessions").Start(ctx, "payment.create_session")
	defer span.End()
	span.SetAttributes(attribute.Int("checkout.line_items", len(in.LineItems)))

	out, err := s.create(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout session failed")
		s.Logger.Warn().Err(err).Int("line_items", len(in.LineItems)).Msg("checkout_session_failed")
		return SessionResponse{}, err
	}
	span.SetAttributes(attribute.String("checkout.session_id", out.ID))
	return out, nil
}

func (s HTTPSessions) create(ctx context.Context, in SessionRequest) (SessionResponse, error) {
	if s.HTTP == nil || strings.TrimSpace(s.Endpoint) == "" {
		return SessionResponse{}, &TransportError{Reason: "session endpoint not configured"}
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return SessionResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return SessionResponse{}, &TransportError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(s.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) {
			return SessionResponse{}, &TransportError{StatusCode: statusErr.StatusCode, Reason: statusErr.Status, Err: err}
		}
		if errors.Is(err, resilience.ErrOpenCircuit) {
			return SessionResponse{}, &TransportError{Reason: "circuit open", Err: err}
		}
		return SessionResponse{}, &TransportError{Reason: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return SessionResponse{}, &TransportError{Reason: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SessionResponse{}, &TransportError{StatusCode: resp.StatusCode, Reason: upstreamMessage(body, resp.Status)}
	}
	var out SessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return SessionResponse{}, &TransportError{Reason: "decode response", Err: err}
	}
	if strings.TrimSpace(out.URL) == "" {
		return SessionResponse{}, &TransportError{Reason: "response missing redirect url"}
	}
	return out, nil
}

func upstreamMessage(body []byte, fallback string) string {
	var payload struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		switch v := payload.Error.(type) {
		case string:
			return v
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return fallback
}
