package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/polisai/polis-compose/pkg/domain"
)

// Metrics holds the Prometheus collectors for composition and interception.
type Metrics struct {
	interceptedCalls *prometheus.CounterVec
	deniedCalls      *prometheus.CounterVec
	constructions    *prometheus.CounterVec
	constructLatency *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics set registered on its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		interceptedCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compose_intercepted_calls_total",
				Help: "Total number of intercepted method calls by type and method",
			},
			[]string{"type", "method"},
		),
		deniedCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compose_denied_calls_total",
				Help: "Total number of intercepted calls aborted by a hook",
			},
			[]string{"type", "method"},
		),
		constructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compose_constructions_total",
				Help: "Total number of instances constructed by type and status",
			},
			[]string{"type", "status"},
		),
		constructLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compose_construct_duration_seconds",
				Help:    "Instance construction latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		registry: registry,
	}

	registry.MustRegister(m.interceptedCalls, m.deniedCalls, m.constructions, m.constructLatency)
	return m
}

// Hook returns a hook counting every call it sees.
func (m *Metrics) Hook() domain.Hook {
	return func(self domain.Object, _ []any, method string) error {
		m.interceptedCalls.WithLabelValues(typeName(self), method).Inc()
		return nil
	}
}

// Guard wraps hook so that the calls it aborts are counted as denied.
func (m *Metrics) Guard(hook domain.Hook) domain.Hook {
	return func(self domain.Object, args []any, method string) error {
		err := hook(self, args, method)
		if err != nil {
			m.deniedCalls.WithLabelValues(typeName(self), method).Inc()
		}
		return err
	}
}

// RecordConstruction records the outcome and duration of a construction.
func (m *Metrics) RecordConstruction(typeName string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.constructions.WithLabelValues(typeName, status).Inc()
	m.constructLatency.WithLabelValues(typeName).Observe(duration.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteText writes every gathered metric family in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
