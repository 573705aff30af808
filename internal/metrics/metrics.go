// Package metrics holds the Prometheus collectors for ledger reads and the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobboard",
			Subsystem: "ledger",
			Name:      "rpc_requests_total",
			Help:      "Total number of ledger JSON-RPC calls.",
		},
		[]string{"method", "status"},
	)

	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jobboard",
			Subsystem: "ledger",
			Name:      "rpc_duration_seconds",
			Help:      "Duration of ledger JSON-RPC calls.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method"},
	)

	decodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobboard",
			Subsystem: "decoder",
			Name:      "failures_total",
			Help:      "Ledger objects that could not be decoded into a record.",
		},
		[]string{"record"},
	)

	scanDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobboard",
			Subsystem: "scanner",
			Name:      "dropped_total",
			Help:      "Registry or dynamic-field entries dropped during a scan.",
		},
		[]string{"record"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobboard",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jobboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		rpcRequests,
		rpcDuration,
		decodeFailures,
		scanDropped,
		httpInFlight,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRPC records one ledger JSON-RPC round trip.
func RecordRPC(method string, duration time.Duration, err error) {
	if method == "" {
		method = "unknown"
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	rpcRequests.WithLabelValues(method, status).Inc()
	rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDecodeFailure counts an object that failed to decode as record.
func RecordDecodeFailure(record string) {
	decodeFailures.WithLabelValues(record).Inc()
}

// RecordScanDropped counts entries dropped while scanning a registry or parent.
func RecordScanDropped(record string, n int) {
	if n <= 0 {
		return
	}
	scanDropped.WithLabelValues(record).Add(float64(n))
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
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

// canonicalPath collapses object ids so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "0x") {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
