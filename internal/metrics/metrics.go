// Пакет metrics содержит коллекторы Prometheus для сервиса.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hoplink"

var (
	// HTTP метрики
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	// Метрики домена
	MessagesRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_registered_total",
			Help:      "Total number of registered messages",
		},
	)

	SharesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shares_created_total",
			Help:      "Total number of shares created, by kind (root or derived)",
		},
		[]string{"kind"},
	)

	CodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_collisions_total",
			Help:      "Total number of ref code collisions on insert",
		},
	)

	ShareViews = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_views_total",
			Help:      "Total number of recorded share views",
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Message cache lookups, by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// Виды шар для SharesCreated
const (
	KindRoot    = "root"
	KindDerived = "derived"
)

// RecordHTTP записывает метрики одного HTTP запроса
func RecordHTTP(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ShareCreated учитывает созданную шару
func ShareCreated(hop int) {
	kind := KindDerived
	if hop <= 1 {
		kind = KindRoot
	}
	SharesCreated.WithLabelValues(kind).Inc()
}
