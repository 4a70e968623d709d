package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("GET", "/api/v1/subscriptions/{id}", 200, 15*time.Millisecond)
	m.WorkflowRuns.WithLabelValues("subscription-reminder", "completed").Inc()
	m.RemindersSent.WithLabelValues(Offset(7), "sent").Inc()
	m.RemindersSent.WithLabelValues(Offset(5), "sent").Inc()

	assert.InDelta(t, 1, counterValue(t, reg, "subscription_tracker_http_requests_total"), 0)
	assert.InDelta(t, 2, counterValue(t, reg, "subscription_tracker_reminder_emails_total"), 0)
	assert.InDelta(t, 1, counterValue(t, reg, "subscription_tracker_workflow_replays_total"), 0)
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
