package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequests counts requests to the debug surface.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wfdirect",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"method", "code"},
	)

	// HTTPDuration tracks request latency on the debug surface.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wfdirect",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// DriverEvents counts raw supplicant events by type, before the
	// state machine sees them.
	DriverEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wfdirect",
			Name:      "driver_events_total",
			Help:      "Total number of supplicant events received",
		},
		[]string{"type"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// This function is idempotent and can be called multiple times safely.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(HTTPRequests)
		prometheus.DefaultRegisterer.Register(HTTPDuration)
		prometheus.DefaultRegisterer.Register(DriverEvents)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps an HTTP handler with request counting and
// latency observation.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
