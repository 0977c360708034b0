package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the control plane's Prometheus collectors on a private
// registry so tests can run servers side by side.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	govOutcomeTotal       *prometheus.CounterVec
	govHITLRequiredTotal  *prometheus.CounterVec
	govReviewActionTotal  *prometheus.CounterVec
	govAdminOverrideTotal *prometheus.CounterVec

	runPipelineDuration   prometheus.Histogram
	runGovernanceDuration prometheus.Histogram

	dbInitSuccess prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gcu_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status_code"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gcu_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"method", "path"}),
		govOutcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gcu_governance_outcome_total",
			Help: "Governance outcomes produced by /run",
		}, []string{"outcome"}),
		govHITLRequiredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gcu_governance_hitl_required_total",
			Help: "Runs where HITL was required",
		}, []string{"required"}),
		govReviewActionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gcu_governance_review_action_total",
			Help: "Manual review actions",
		}, []string{"action"}),
		govAdminOverrideTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gcu_governance_admin_override_total",
			Help: "Admin overrides applied",
		}, []string{"target_status"}),
		runPipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gcu_run_pipeline_duration_seconds",
			Help:    "Pipeline execution duration for /run",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
		}),
		runGovernanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gcu_run_governance_duration_seconds",
			Help:    "Governance decision duration for /run (status machine + persistence)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
		dbInitSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gcu_db_init_success",
			Help: "1 if DB init succeeded on startup; 0 otherwise",
		}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.govOutcomeTotal,
		m.govHITLRequiredTotal,
		m.govReviewActionTotal,
		m.govAdminOverrideTotal,
		m.runPipelineDuration,
		m.runGovernanceDuration,
		m.dbInitSuccess,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetDBInitSuccess records whether database initialization succeeded.
func (m *Metrics) SetDBInitSuccess(ok bool) {
	if ok {
		m.dbInitSuccess.Set(1)
	} else {
		m.dbInitSuccess.Set(0)
	}
}

// HTTPMiddleware observes request counts and latency. The path label
// is the chi route pattern, not the raw URL, to keep cardinality
// bounded.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
	})
}
