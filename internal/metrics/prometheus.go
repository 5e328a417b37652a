// Package metrics provides Prometheus metrics for selection runs and the HTTP
// surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Manager owns a registry and the collectors registered on it. A nil
// *Manager is valid and records nothing.
type Manager struct {
	namespace       string
	durationBuckets []float64
	registry        *prometheus.Registry

	selectionRuns     *prometheus.CounterVec
	selectionPicks    *prometheus.CounterVec
	selectionDuration prometheus.Histogram
	reservePromotions prometheus.Counter
	registrations     *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "wnf",
		durationBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.selectionRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "selection",
		Name:      "runs_total",
		Help:      "Selection runs by trigger and outcome.",
	}, []string{"trigger", "outcome"})

	m.selectionPicks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "selection",
		Name:      "picks_total",
		Help:      "Players selected by selection method.",
	}, []string{"method"})

	m.selectionDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "selection",
		Name:      "duration_seconds",
		Help:      "Time spent running selection including persistence.",
		Buckets:   m.durationBuckets,
	})

	m.reservePromotions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "selection",
		Name:      "reserve_promotions_total",
		Help:      "Reserves promoted after a selected player dropped out.",
	})

	m.registrations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "roster",
		Name:      "registrations_total",
		Help:      "Game registrations by whether a priority token was used.",
	}, []string{"priority_token"})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern, method and status.",
	}, []string{"route", "method", "status"})

	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern and method.",
		Buckets:   m.durationBuckets,
	}, []string{"route", "method"})
}

// RecordSelectionRun records one run. picks maps method name to count.
func (m *Manager) RecordSelectionRun(trigger, outcome string, picks map[string]int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.selectionRuns.WithLabelValues(trigger, outcome).Inc()
	m.selectionDuration.Observe(elapsed.Seconds())
	for method, n := range picks {
		m.selectionPicks.WithLabelValues(method).Add(float64(n))
	}
}

func (m *Manager) RecordReservePromotion() {
	if m == nil {
		return
	}
	m.reservePromotions.Inc()
}

func (m *Manager) RecordRegistration(usedPriorityToken bool) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(strconv.FormatBool(usedPriorityToken)).Inc()
}

func (m *Manager) RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}
