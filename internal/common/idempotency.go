package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader carries the client supplied idempotency key.
const IdempotencyHeader = "Idempotency-Key"

const idemPending = "pending"

const idemSkipKey ctxKey = "idem/skip"

// SkipIdempotency marks the response being written as transient. Idem then
// releases the key instead of storing the response, so a retry with the same
// key runs the handler again.
func SkipIdempotency(ctx context.Context) {
	if skip, ok := ctx.Value(idemSkipKey).(*bool); ok {
		*skip = true
	}
}

// Idem replays the first completed response for a repeated Idempotency-Key.
// Keys are scoped to the verified cart so two carts never share a replay.
// Requests without the header pass through untouched.
type Idem struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func (i Idem) key(r *http.Request, header string) string {
	prefix := i.Prefix
	if prefix == "" {
		prefix = "idem:"
	}
	scope, _ := CartID(r.Context())
	sum := sha256.Sum256([]byte(scope + "\x00" + r.Method + "\x00" + r.URL.Path + "\x00" + header))
	return prefix + hex.EncodeToString(sum[:])
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// Middleware enforces idempotency semantics for write endpoints. A request
// arriving while the first one is still running gets 409. Server errors are
// not stored, nor are 429s or responses marked with SkipIdempotency, so the
// client may retry with the same key.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(header) > 255 {
			JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "idempotency key too long", nil)
			return
		}
		ctx := r.Context()
		key := i.key(r, header)
		ok, err := i.R.SetNX(ctx, key, idemPending, i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !ok {
			i.replay(ctx, w, key)
			return
		}

		rec := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
		stored := false
		defer func() {
			if !stored {
				_ = i.R.Del(context.WithoutCancel(ctx), key).Err()
			}
		}()
		skip := false
		next.ServeHTTP(rec, r.WithContext(context.WithValue(ctx, idemSkipKey, &skip)))

		if skip || rec.status == http.StatusTooManyRequests || rec.status >= http.StatusInternalServerError {
			return
		}
		if !json.Valid(rec.body.Bytes()) {
			return
		}
		payload, err := json.Marshal(storedResponse{Status: rec.status, Body: rec.body.Bytes()})
		if err != nil {
			return
		}
		if err := i.R.Set(context.WithoutCancel(ctx), key, payload, i.ttl()).Err(); err == nil {
			stored = true
		}
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key string) {
	raw, err := i.R.Get(ctx, key).Bytes()
	if err != nil || string(raw) == idemPending {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_IN_PROGRESS", "a request with this idempotency key is in progress", nil)
		return
	}
	var resp storedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_IN_PROGRESS", "a request with this idempotency key is in progress", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// bufferedWriter tees the response so it can be stored after the handler returns.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}
