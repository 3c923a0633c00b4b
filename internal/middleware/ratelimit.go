package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/k4631938-beep/Dangwar/internal/cache"
	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
	"github.com/k4631938-beep/Dangwar/internal/pkg/response"
)

// RateLimitConfig defines rate limiting parameters.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// RateLimit returns a rate limiting middleware using Redis. On Redis failure
// the request is allowed through; the limiter degrades rather than blocks.
func RateLimit(redis *cache.Redis, cfg RateLimitConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := getClientID(r)
			key := fmt.Sprintf("ratelimit:%s", clientID)

			windowDuration := time.Minute
			count, err := redis.IncrWithExpire(r.Context(), key, windowDuration)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			limit := cfg.RequestsPerMinute
			remaining := limit - int(count)
			if remaining < 0 {
				remaining = 0
			}
			resetTime := time.Now().Add(windowDuration).Unix()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

			if int(count) > limit+cfg.BurstSize {
				w.Header().Set("Retry-After", strconv.Itoa(60))
				response.Error(w, apperrors.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientID extracts a unique identifier for the client. Signed-in clients
// are limited per account so shared NATs don't starve each other.
func getClientID(r *http.Request) string {
	if accountID := GetAccountID(r.Context()); accountID != "" {
		return "account:" + accountID
	}
	return "ip:" + getRealIP(r)
}

// getRealIP extracts the real client IP, considering proxies.
func getRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.Split(xff, ",")[0]
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	return r.RemoteAddr
}
