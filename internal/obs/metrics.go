package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Access and guard metrics.
var (
	guardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_decisions_total",
			Help: "Tenant guard decisions by action.",
		},
		[]string{"action"},
	)

	lockWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenant_lock_write_failures_total",
		Help: "Tenant lock writes that failed.",
	})

	accessResolutions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "access_resolutions_total",
		Help: "Access views resolved.",
	})

	snapshotFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_fetch_errors_total",
			Help: "Failed snapshot fetches by source.",
		},
		[]string{"source"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the last readiness check passed.",
	})
)

var initOnce sync.Once

// Init registers all metrics in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			guardDecisions, lockWriteFailures, accessResolutions, snapshotFetchErrors, ready,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveGuardDecision(action string) { guardDecisions.WithLabelValues(action).Inc() }

func IncLockWriteFailures() { lockWriteFailures.Inc() }

func IncAccessResolutions() { accessResolutions.Inc() }

func IncSnapshotFetchErrors(source string) { snapshotFetchErrors.WithLabelValues(source).Inc() }

// SetReady records the outcome of the last readiness check.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Instrument records request count, latency and in-flight gauge.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses identifiers in known routes so metric labels stay bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 4 && parts[0] == "v1" {
		switch {
		case parts[1] == "users" && parts[3] == "access":
			return "/v1/users/:id/access"
		case parts[1] == "groups" && parts[3] == "members":
			return "/v1/groups/:id/members"
		}
	}
	if len(parts) >= 2 && parts[0] == "tenant" {
		return "/tenant/:id"
	}
	return path
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
