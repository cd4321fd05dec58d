package common

import "context"

type ctxKey string

const cartIDKey ctxKey = "session/cart-id"

// WithCartID stores the cart identifier proven by the cart token.
func WithCartID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cartIDKey, id)
}

// CartID extracts the verified cart identifier from the context if present.
func CartID(ctx context.Context) (string, bool) {
	v := ctx.Value(cartIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
