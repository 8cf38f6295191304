package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// upstreamRequestsTotal — запросы к REST API библиотеки.
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lm_api_requests_total",
		Help: "Количество запросов к REST API библиотеки",
	}, []string{"method", "status"})

	// upstreamRequestDuration — длительность запросов к REST API.
	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lm_api_request_duration_seconds",
		Help:    "Длительность запросов к REST API библиотеки в секундах",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// tokenRefreshTotal — обновления access token по результату.
	tokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lm_api_token_refresh_total",
		Help: "Количество обновлений access token (success, failure, shared, skipped)",
	}, []string{"result"})
)
