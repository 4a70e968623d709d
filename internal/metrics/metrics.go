// Package metrics содержит коллекторы Prometheus для HTTP, workflow и напоминаний.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "subscription_tracker"

// Metrics набор коллекторов одного процесса.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	WorkflowRuns    *prometheus.CounterVec
	WorkflowSteps   *prometheus.CounterVec
	WorkflowReplay  *prometheus.HistogramVec
	WakeupsClaimed  prometheus.Counter
	RemindersQueued *prometheus.CounterVec
	RemindersSent   *prometheus.CounterVec
	TriggerFailures prometheus.Counter
	Expired         prometheus.Counter
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		WorkflowRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "replays_total",
			Help:      "Workflow replays by workflow and outcome.",
		}, []string{"workflow", "outcome"}),
		WorkflowSteps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "steps_committed_total",
			Help:      "Committed workflow steps by workflow and kind.",
		}, []string{"workflow", "kind"}),
		WorkflowReplay: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "replay_duration_seconds",
			Help:      "Duration of a single workflow replay.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow"}),
		WakeupsClaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "wakeups_claimed_total",
			Help:      "Wake-ups claimed from the queue.",
		}),
		RemindersQueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminder",
			Name:      "published_total",
			Help:      "Reminders published to the broker by offset.",
		}, []string{"offset"}),
		RemindersSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminder",
			Name:      "emails_total",
			Help:      "Reminder e-mails by offset and result.",
		}, []string{"offset", "result"}),
		TriggerFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "trigger_failures_total",
			Help:      "Failed workflow trigger calls at subscription creation.",
		}),
		Expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "expired_total",
			Help:      "Subscriptions moved to expired by the sweeper.",
		}),
	}
}

// NewNoop создаёт коллекторы в отдельном реестре. Используется в тестах.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveHTTP учитывает один HTTP-запрос.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Offset метка для дня напоминания.
func Offset(days int) string {
	return strconv.Itoa(days)
}
