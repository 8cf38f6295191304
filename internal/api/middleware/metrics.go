// metrics.go — Prometheus HTTP-метрики веб-интерфейса:
// lm_http_requests_total, lm_http_request_duration_seconds.
// Путь в лейблах нормализуется, чтобы идентификаторы не раздували кардинальность.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lm_http_requests_total",
			Help: "Общее количество HTTP-запросов к веб-интерфейсу",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к веб-интерфейсу в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware собирает количество и длительность запросов.
// Лейбл path — шаблон маршрута chi, а для запросов вне маршрутов — normalizePath.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			path := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				path = rctx.RoutePattern()
			}
			if path == "" {
				path = normalizePath(r.URL.Path)
			}
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath заменяет сегменты-идентификаторы на {id}:
// /books/65f1c2a9e4b0a1b2c3d4e5f6/edit → /books/{id}/edit.
// Идентификатор — ObjectId (24 hex), UUID или число.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if isIdentifier(s) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func isIdentifier(s string) bool {
	switch {
	case s == "":
		return false
	case len(s) == 24 && isHex(s):
		return true
	case len(s) == 36 && strings.Count(s, "-") == 4 && isHex(strings.ReplaceAll(s, "-", "")):
		return true
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
