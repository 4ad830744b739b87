package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
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
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Job metrics
	jobsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_started_total",
			Help: "Total number of jobs started",
		},
	)

	jobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_finished_total",
			Help: "Total number of finished jobs by terminal status",
		},
		[]string{"status"},
	)

	// Queue metrics
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of jobs waiting in queue",
		},
	)

	// Push channel metrics
	connectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Number of connected WebSocket clients",
		},
	)
)

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics for WebSocket upgrade requests
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordJobStarted increments the start counter
func RecordJobStarted() {
	jobsStartedTotal.Inc()
}

// RecordJobFinished records a terminal status
func RecordJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth sets the current queue depth
func SetQueueDepth(depth int64) {
	queueDepth.Set(float64(depth))
}

// SetConnectedClients sets the current WebSocket client count
func SetConnectedClients(count int) {
	connectedClients.Set(float64(count))
}
