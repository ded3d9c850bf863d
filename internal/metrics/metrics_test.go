package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the samples of family name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestRecordOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordOutcome("github", "created", 10*time.Millisecond)
	m.RecordOutcome("github", "created", 20*time.Millisecond)
	m.RecordOutcome("github", "signed_in", time.Millisecond)
	m.RecordLocalLogin("invalid_credential")

	assert.Equal(t, 2.0, counterValue(t, reg, "federation_outcomes_total", map[string]string{"provider": "github", "outcome": "created"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "federation_outcomes_total", map[string]string{"outcome": "signed_in"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "federation_local_logins_total", map[string]string{"outcome": "invalid_credential"}))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOutcome("github", "created", time.Second)
		m.RecordLocalLogin("signed_in")
	})
}
