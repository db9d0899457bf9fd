package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newswire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "newswire",
			Subsystem: "session",
			Name:      "active",
			Help:      "Connected client sessions.",
		},
	)
	sessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "session",
			Name:      "accepted_total",
			Help:      "Accepted client sessions.",
		},
	)
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "session",
			Name:      "actions_total",
			Help:      "Handled client actions by outcome.",
		},
		[]string{"action", "status"},
	)
	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "News API requests.",
		},
		[]string{"endpoint", "status", "success"},
	)
	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newswire",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "News API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "success"},
	)
	persistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Raw response writes that failed.",
		},
		[]string{"backend"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			sessionsActive,
			sessionsTotal,
			actionsTotal,
			upstreamRequests,
			upstreamDuration,
			persistFailures,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func SessionOpened() {
	RegisterMetrics()
	sessionsTotal.Inc()
	sessionsActive.Inc()
}

func SessionClosed() {
	RegisterMetrics()
	sessionsActive.Dec()
}

func RecordAction(action, status string) {
	RegisterMetrics()
	actionsTotal.WithLabelValues(action, status).Inc()
}

// RecordUpstream records one News API call; status is 0 when no response arrived.
func RecordUpstream(endpoint string, status int, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(status), successLabel).Inc()
	upstreamDuration.WithLabelValues(endpoint, successLabel).Observe(duration.Seconds())
}

func RecordPersistFailure(backend string) {
	RegisterMetrics()
	persistFailures.WithLabelValues(backend).Inc()
}
