// Package metrics holds the Prometheus collectors for the lantern service.
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

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lantern",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lantern",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lantern",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	flareTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lantern",
			Subsystem: "exchange",
			Name:      "flare_transitions_total",
			Help:      "Total number of flare status transitions.",
		},
		[]string{"to_status"},
	)

	lanternsMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lantern",
			Subsystem: "ledger",
			Name:      "lanterns_moved_total",
			Help:      "Total lanterns moved, by transaction reason.",
		},
		[]string{"reason"},
	)

	syncCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lantern",
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Total number of sync cycles run.",
		},
		[]string{"result"},
	)

	syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lantern",
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of sync cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		flareTransitions,
		lanternsMoved,
		syncCycles,
		syncDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
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

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordFlareTransition counts a flare moving to a new status.
func RecordFlareTransition(toStatus string) {
	flareTransitions.WithLabelValues(toStatus).Inc()
}

// RecordLanternsMoved counts lanterns moved through the ledger.
func RecordLanternsMoved(reason string, amount int64) {
	lanternsMoved.WithLabelValues(reason).Add(float64(amount))
}

// RecordSyncCycle records one sync cycle.
func RecordSyncCycle(result string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	syncCycles.WithLabelValues(result).Inc()
	syncDuration.Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses id segments so the path label stays low-cardinality.
func canonicalPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if strings.Contains(part, "-") || strings.Contains(part, "#") {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
