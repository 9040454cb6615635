// Package monitoring holds the service's own Prometheus metrics. The
// registry is constructed explicitly and injected into components, so
// unit tests can run with isolated registries instead of package-level
// globals.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	AlertsCreated     *prometheus.CounterVec
	RateLimitAllowed  prometheus.Counter
	RateLimitDenied   *prometheus.CounterVec
	RateLimitFailOpen prometheus.Counter
	CollectorPolls    *prometheus.CounterVec
	RemediationEvents *prometheus.CounterVec
}

// NewMetrics builds and registers all counters on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opscore_alerts_created_total",
			Help: "Anomaly alerts created, by severity",
		}, []string{"severity"}),
		RateLimitAllowed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opscore_ratelimit_allowed_total",
			Help: "Requests permitted by the rate limiter",
		}),
		RateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opscore_ratelimit_denied_total",
			Help: "Requests denied by the rate limiter, by rule key prefix",
		}, []string{"rule"}),
		RateLimitFailOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opscore_ratelimit_fail_open_total",
			Help: "Requests permitted because the counter store was unreachable",
		}),
		CollectorPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opscore_collector_polls_total",
			Help: "Telemetry collection attempts, by outcome",
		}, []string{"outcome"}),
		RemediationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opscore_remediation_events_total",
			Help: "Remediation events recorded, by status",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.AlertsCreated,
		m.RateLimitAllowed,
		m.RateLimitDenied,
		m.RateLimitFailOpen,
		m.CollectorPolls,
		m.RemediationEvents,
	)

	return m
}

// AlertCreated bumps the alerts-created counter. Safe on a nil receiver
// so components can run without metrics wired (tests, degraded mode).
func (m *Metrics) AlertCreated(severity string) {
	if m == nil {
		return
	}
	m.AlertsCreated.WithLabelValues(severity).Inc()
}

func (m *Metrics) RequestAllowed() {
	if m == nil {
		return
	}
	m.RateLimitAllowed.Inc()
}

func (m *Metrics) RequestDenied(rule string) {
	if m == nil {
		return
	}
	m.RateLimitDenied.WithLabelValues(rule).Inc()
}

func (m *Metrics) FailOpen() {
	if m == nil {
		return
	}
	m.RateLimitFailOpen.Inc()
}

func (m *Metrics) CollectorPoll(outcome string) {
	if m == nil {
		return
	}
	m.CollectorPolls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RemediationEvent(status string) {
	if m == nil {
		return
	}
	m.RemediationEvents.WithLabelValues(status).Inc()
}
