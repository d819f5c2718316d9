package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Metrics middleware records HTTP metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// idCollections are the path segments followed by a resource id.
var idCollections = []string{"/api/v1/contexts/", "/api/v1/entries/"}

// staticSegments are literal routes living next to {id}.
var staticSegments = map[string]bool{"friends": true, "groups": true}

// normalizePath replaces resource ids with :id to keep label cardinality low.
// /api/v1/contexts/01ABC/entries -> /api/v1/contexts/:id/entries
func normalizePath(path string) string {
	for _, prefix := range idCollections {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" || rest[0] == '/' {
			continue
		}

		id, suffix := rest, ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			id, suffix = rest[:i], rest[i:]
		}
		if staticSegments[id] {
			return path
		}
		return prefix + ":id" + suffix
	}

	return path
}
