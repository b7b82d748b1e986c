// Package metrics exposes Prometheus instrumentation for rewrite decisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "openrtklaw"

// Metrics holds the collectors on a private registry, so several instances
// can coexist in one process (tests, embedded use).
type Metrics struct {
	registry *prometheus.Registry

	decisions   *prometheus.CounterVec
	duration    prometheus.Histogram
	rulesLoaded prometheus.Gauge
	reloads     *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Rewrite decisions by outcome, reason and rule.",
			},
			[]string{"outcome", "reason", "rule"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Time spent deciding whether to rewrite a command.",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		),
		rulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rules_loaded",
				Help:      "Number of rules in the active table.",
			},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_reloads_total",
				Help:      "Rule table reloads by result.",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(m.decisions, m.duration, m.rulesLoaded, m.reloads)
	return m
}

// ObserveDecision counts one decision and its latency.
func (m *Metrics) ObserveDecision(outcome, reason, rule string, took time.Duration) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome, reason, rule).Inc()
	m.duration.Observe(took.Seconds())
}

// SetRulesLoaded records the size of the active rule table.
func (m *Metrics) SetRulesLoaded(n int) {
	if m == nil {
		return
	}
	m.rulesLoaded.Set(float64(n))
}

// ObserveReload counts a rule reload; ok=false means the previous table was kept.
func (m *Metrics) ObserveReload(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
