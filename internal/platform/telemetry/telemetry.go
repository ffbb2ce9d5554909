// Package telemetry exposes Prometheus counters for the intake workflows.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "intake"

type Metrics struct {
	visitsSaved         *prometheus.CounterVec
	savesRefused        *prometheus.CounterVec
	storageErrors       *prometheus.CounterVec
	reconcileActions    *prometheus.CounterVec
	invariantViolations *prometheus.CounterVec
	gatherer            prometheus.Gatherer
}

// New registers the intake collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		visitsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_saved_total",
			Help:      "Visit snapshots appended to a section timeline.",
		}, []string{"section"}),
		savesRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_refused_total",
			Help:      "Save attempts refused because the section answer was unset.",
		}, []string{"section"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Failed reads or writes against durable storage.",
		}, []string{"op"}),
		reconcileActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_actions_total",
			Help:      "Previous-visit banner resolutions.",
		}, []string{"section", "action"}),
		invariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_violations_total",
			Help:      "Store mutations refused by a collection invariant.",
		}, []string{"section"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.visitsSaved,
		m.savesRefused,
		m.storageErrors,
		m.reconcileActions,
		m.invariantViolations,
	)
	return m
}

func (m *Metrics) VisitSaved(section string) {
	if m == nil {
		return
	}
	m.visitsSaved.WithLabelValues(section).Inc()
}

func (m *Metrics) SaveRefused(section string) {
	if m == nil {
		return
	}
	m.savesRefused.WithLabelValues(section).Inc()
}

func (m *Metrics) StorageError(op string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ReconcileAction(section, action string) {
	if m == nil {
		return
	}
	m.reconcileActions.WithLabelValues(section, action).Inc()
}

func (m *Metrics) InvariantViolation(section string) {
	if m == nil {
		return
	}
	m.invariantViolations.WithLabelValues(section).Inc()
}

// Gatherer exposes the underlying registry (tests, custom exporters).
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// Handler serves the Prometheus text exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	h := promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}
