package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the application's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	settlementsApplied  *prometheus.CounterVec
	settlementsReversed prometheus.Counter
	allocationsPerBatch prometheus.Histogram
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_settlements_applied_total",
		Help: "Settlement applies, split by fresh posts and idempotent replays.",
	}, []string{"outcome"})
	reversed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_settlements_reversed_total",
		Help: "Settlement reversals posted.",
	})
	allocations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "meridian_settlement_allocations_per_batch",
		Help:    "Open item allocations per settlement batch.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})
	registry.MustRegister(requests, duration, applied, reversed, allocations)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		settlementsApplied:  applied,
		settlementsReversed: reversed,
		allocationsPerBatch: allocations,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// SettlementApplied counts one apply outcome.
func (m *Metrics) SettlementApplied(replay bool) {
	if m == nil {
		return
	}
	outcome := "posted"
	if replay {
		outcome = "replayed"
	}
	m.settlementsApplied.WithLabelValues(outcome).Inc()
}

// SettlementReversed counts one reversal.
func (m *Metrics) SettlementReversed() {
	if m == nil {
		return
	}
	m.settlementsReversed.Inc()
}

// ObserveAllocations records the allocation count of one posted batch.
func (m *Metrics) ObserveAllocations(count int) {
	if m == nil {
		return
	}
	m.allocationsPerBatch.Observe(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
