package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const pendingMarker = "pending"

// Idem makes write endpoints safe to retry. The first request carrying an
// Idempotency-Key runs the handler and its response is stored; repeats of
// the same method, path and key receive the stored response. A repeat that
// arrives while the first is still running gets 409. Server errors are not
// stored so the client can retry them.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

func idemKey(r *http.Request, header string) string {
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + " " + header))
	return "orderdesk:idem:" + hex.EncodeToString(sum[:])
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// Middleware implements chi middleware.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := idemKey(r, header)

		claimed, err := i.R.SetNX(ctx, key, pendingMarker, i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, CodeInternal, "idempotency store error", nil)
			return
		}
		if !claimed {
			i.replay(ctx, w, key)
			return
		}

		rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		i.store(context.WithoutCancel(ctx), key, rec)
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key string) {
	raw, err := i.R.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil), err == nil && raw == pendingMarker:
		JSONError(w, http.StatusConflict, "IDEMPOTENT_IN_FLIGHT", "a request with this Idempotency-Key is still running", nil)
		return
	case err != nil:
		JSONError(w, http.StatusInternalServerError, CodeInternal, "idempotency store error", nil)
		return
	}
	var prev storedResponse
	if err := json.Unmarshal([]byte(raw), &prev); err != nil {
		JSONError(w, http.StatusInternalServerError, CodeInternal, "idempotency store error", nil)
		return
	}
	if prev.ContentType != "" {
		w.Header().Set("Content-Type", prev.ContentType)
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(prev.Status)
	_, _ = w.Write(prev.Body)
}

func (i Idem) store(ctx context.Context, key string, rec *captureWriter) {
	logger := zerolog.Ctx(ctx)
	if rec.status >= http.StatusInternalServerError {
		if err := i.R.Del(ctx, key).Err(); err != nil {
			logger.Warn().Err(err).Msg("idempotency_release_failed")
		}
		return
	}
	payload, err := json.Marshal(storedResponse{
		Status:      rec.status,
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.body.Bytes(),
	})
	if err == nil {
		err = i.R.Set(ctx, key, payload, i.ttl()).Err()
	}
	if err != nil {
		logger.Warn().Err(err).Msg("idempotency_store_failed")
	}
}

// captureWriter tees the response into a buffer.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
