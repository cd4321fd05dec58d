// Package session issues and verifies the signed cart tokens that prove a
// browser owns the cart it is mutating.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/eoafashion/storefront-api/internal/common"
)

const defaultIssuer = "storefront-api"

var (
	// ErrMissingToken is returned when no cart token accompanies a request.
	ErrMissingToken = errors.New("session: cart token missing")
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("session: invalid cart token")
	// ErrCartMismatch is returned when a valid token names another cart.
	ErrCartMismatch = errors.New("session: token issued for another cart")
)

// Issuer signs and verifies HS256 cart tokens.
type Issuer struct {
	Secret    []byte
	TTL       time.Duration
	Issuer    string
	ClockSkew time.Duration
	Now       func() time.Time
}

func (i Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i Issuer) issuer() string {
	if i.Issuer == "" {
		return defaultIssuer
	}
	return i.Issuer
}

func (i Issuer) ttl() time.Duration {
	if i.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return i.TTL
}

// Issue returns a signed token whose subject is the cart id.
func (i Issuer) Issue(cartID string) (string, time.Time, error) {
	if len(i.Secret) == 0 {
		return "", time.Time{}, errors.New("session: secret not configured")
	}
	now := i.now()
	expiresAt := now.Add(i.ttl())
	token, err := jwt.NewBuilder().
		Subject(cartID).
		Issuer(i.issuer()).
		IssuedAt(now).
		NotBefore(now.Add(-i.ClockSkew)).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, i.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// Verify checks signature, issuer and expiry and returns the cart id.
func (i Issuer) Verify(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", ErrMissingToken
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if algorithm != jwa.HS256 {
		return "", fmt.Errorf("%w: unexpected algorithm %s", ErrInvalidToken, algorithm)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(jwa.HS256, i.Secret), jwt.WithValidate(false))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(i.now)),
		jwt.WithIssuer(i.issuer()),
	}
	if i.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(i.ClockSkew))
	}
	if err := jwt.Validate(parsed, opts...); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.Subject() == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return parsed.Subject(), nil
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("missing algorithm")
	}
	return alg, nil
}

// HeaderName carries the cart token on cart requests.
const HeaderName = "X-Cart-Token"

// Middleware requires a token for the cart named by the chi URL parameter.
type Middleware struct {
	Issuer Issuer
	// CartID extracts the cart id the request targets.
	CartID func(*http.Request) string
}

// Require rejects requests without a valid token for the targeted cart.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get(HeaderName))
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "cart token required", nil)
			return
		}
		cartID, err := m.Issuer.Verify(token)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid cart token", nil)
			return
		}
		if m.CartID != nil {
			if target := m.CartID(r); target != "" && target != cartID {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", ErrCartMismatch.Error(), nil)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(common.WithCartID(r.Context(), cartID)))
	})
}
