package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

// Idempotency drops retried writes from flaky waiter tablets. A request
// carrying an Idempotency-Key claims a marker in Redis; a second request with
// the same key while the marker lives gets 409. Requests without the header
// pass through. When Redis is unreachable requests pass through too.
//
// A marker is released when the handler fails with 5xx so the client may retry.
func Idempotency(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if rdb == nil || key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			marker := idempotencyMarker(r, key)
			ok, err := rdb.SetNX(r.Context(), marker, "1", ttl).Result()
			if err != nil {
				logger.Warn("idempotency marker unavailable", zap.String("key", marker), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate request"})
				return
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.code() >= 500 {
				if err := rdb.Del(r.Context(), marker).Err(); err != nil {
					logger.Warn("release idempotency marker", zap.String("key", marker), zap.Error(err))
				}
			}
		})
	}
}

func idempotencyMarker(r *http.Request, key string) string {
	subject := "anonymous"
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		subject = claims.UserID.String()
	}
	return "idem:" + subject + ":" + r.Method + ":" + r.URL.Path + ":" + key
}
