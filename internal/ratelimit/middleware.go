package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/order-desk/internal/common"
)

// Handler throttles requests per key. Store failures let the request
// through.
type Handler struct {
	Limiter *limiter.Limiter
	// Key picks the bucket; defaults to the client IP.
	Key func(*http.Request) string
}

// SessionKey buckets lookups per desk session so one busy operator does not
// starve others behind the same proxy.
func SessionKey(r *http.Request) string {
	if sid := chi.URLParam(r, "sid"); sid != "" {
		return "session:" + sid
	}
	return "ip:" + common.ClientIP(r)
}

// Middleware implements chi middleware.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil {
		return next
	}
	key := h.Key
	if key == nil {
		key = common.ClientIP
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lctx, err := h.Limiter.Get(r.Context(), key(r))
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("rate_limit_store_failed")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
		if !lctx.Reached {
			next.ServeHTTP(w, r)
			return
		}

		wait := time.Until(time.Unix(lctx.Reset, 0))
		headers.Set("Retry-After", strconv.Itoa(max(int(wait.Seconds()), 0)))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many lookups, slow down", nil)
	})
}
