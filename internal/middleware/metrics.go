// Package middleware provides HTTP middleware for the Dangwar API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/k4631938-beep/Dangwar/internal/pkg/ulid"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dangwar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dangwar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	postsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dangwar_posts_created_total",
			Help: "Total number of posts created",
		},
	)

	signupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dangwar_signups_total",
			Help: "Total number of completed signups",
		},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dangwar_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"},
	)
)

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			path := normalizePath(r)

			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.status)
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())

			if r.Method == http.MethodPost && r.URL.Path == "/v1/posts" && wrapped.status == http.StatusCreated {
				postsCreatedTotal.Inc()
			}
			if r.Method == http.MethodPost && r.URL.Path == "/v1/auth/signup" && wrapped.status == http.StatusCreated {
				signupsTotal.Inc()
			}

			if wrapped.status >= 400 {
				errorType := "client_error"
				if wrapped.status >= 500 {
					errorType = "server_error"
				}
				errorsTotal.WithLabelValues(errorType).Inc()
			}
		})
	}
}

// normalizePath normalizes URL paths to prevent cardinality explosion.
func normalizePath(r *http.Request) string {
	// Prefer the chi route pattern when available
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}

	segments := strings.Split(r.URL.Path, "/")
	for i, seg := range segments {
		if ulid.IsValid(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
