package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
)

// Metrics are the Prometheus collectors served on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	evaluations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	cache       *prometheus.CounterVec
	evalSeconds prometheus.Histogram
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_evaluations_total",
			Help: "Completed evaluations by verdict and rules version.",
		}, []string{"compliant", "rules_version"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_failed_findings_total",
			Help: "Failed findings by rule and severity.",
		}, []string{"rule_id", "severity"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_report_cache_total",
			Help: "Report cache lookups by result.",
		}, []string{"result"}),
		evalSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_evaluation_duration_seconds",
			Help:    "Time spent evaluating one project.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.evaluations, m.failures, m.cache, m.evalSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry so callers can add collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeEvaluation(r *findings.Report, elapsed time.Duration) {
	m.evalSeconds.Observe(elapsed.Seconds())
	m.evaluations.WithLabelValues(strconv.FormatBool(r.Summary.Compliant), r.RulesVersion).Inc()
	for _, f := range r.Findings {
		if !f.Passed {
			m.failures.WithLabelValues(f.RuleID, string(f.Severity)).Inc()
		}
	}
}

func (m *Metrics) observeCache(hit bool) {
	if hit {
		m.cache.WithLabelValues("hit").Inc()
	} else {
		m.cache.WithLabelValues("miss").Inc()
	}
}
