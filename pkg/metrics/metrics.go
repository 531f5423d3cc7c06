package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the access layer.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	GateDecisions        *prometheus.CounterVec
	ResolverFailures     *prometheus.CounterVec
	AdminContextSwitches *prometheus.CounterVec
	AmbiguousMemberships prometheus.Counter
}

// New creates and registers all collectors on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_gate_decisions_total",
				Help: "Permission gate evaluations by outcome and deny reason",
			},
			[]string{"outcome", "reason"},
		),
		ResolverFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_resolver_failures_total",
				Help: "Backend failures swallowed by resolvers, by component",
			},
			[]string{"component"},
		),
		AdminContextSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_admin_context_switches_total",
				Help: "Platform admin effective-organization changes",
			},
			[]string{"action"},
		),
		AmbiguousMemberships: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "opsdesk_ambiguous_memberships_total",
				Help: "Sessions rejected because a user has several active memberships",
			},
		),
	}
	registry.MustRegister(
		m.GateDecisions,
		m.ResolverFailures,
		m.AdminContextSwitches,
		m.AmbiguousMemberships,
	)
	return m
}

// ObserveGate records one gate decision.
func (m *Metrics) ObserveGate(allowed bool, reason string) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.GateDecisions.WithLabelValues(outcome, reason).Inc()
}

// ResolverFailure records a swallowed backend failure.
func (m *Metrics) ResolverFailure(component string) {
	if m == nil {
		return
	}
	m.ResolverFailures.WithLabelValues(component).Inc()
}

// AdminContextSwitch records an admin context set or clear.
func (m *Metrics) AdminContextSwitch(action string) {
	if m == nil {
		return
	}
	m.AdminContextSwitches.WithLabelValues(action).Inc()
}

// AmbiguousMembership records a rejected ambiguous session.
func (m *Metrics) AmbiguousMembership() {
	if m == nil {
		return
	}
	m.AmbiguousMemberships.Inc()
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
