// Package metrics exposes Prometheus counters for identity resolution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for login and linking.
//
// All methods handle a nil receiver, so a nil *Metrics disables collection.
type Metrics struct {
	// OutcomesTotal counts resolution results by provider and outcome.
	OutcomesTotal *prometheus.CounterVec

	// ResolveDuration tracks callback handling latency, provider fetches included.
	ResolveDuration *prometheus.HistogramVec

	// LocalLoginsTotal counts password logins by result.
	LocalLoginsTotal *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. Pass a nil reg to
// create unregistered metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "federation_outcomes_total",
				Help: "Identity resolution outcomes by provider",
			},
			[]string{"provider", "outcome"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "federation_resolve_duration_seconds",
				Help:    "Provider callback handling duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		LocalLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "federation_local_logins_total",
				Help: "Password logins by outcome",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.OutcomesTotal, m.ResolveDuration, m.LocalLoginsTotal)
	}
	return m
}

// RecordOutcome counts one provider callback and its duration.
//
// Safe to call on nil receiver.
func (m *Metrics) RecordOutcome(provider, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(provider, outcome).Inc()
	m.ResolveDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordLocalLogin counts one password login.
//
// Safe to call on nil receiver.
func (m *Metrics) RecordLocalLogin(outcome string) {
	if m == nil {
		return
	}
	m.LocalLoginsTotal.WithLabelValues(outcome).Inc()
}
