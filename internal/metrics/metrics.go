package metrics

import "github.com/prometheus/client_golang/prometheus"

var NotificationsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notifications delivered to the messaging endpoint",
	},
	[]string{"type"},
)

var NotificationRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notification_retries_total",
		Help: "Total number of delivery retries scheduled",
	},
	[]string{"type"},
)

var NotificationsFatalTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_fatal_total",
		Help: "Total number of notifications abandoned as fatal",
	},
	[]string{"type", "reason"},
)

var OutboxBacklog = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "outbox_backlog",
		Help: "Number of outbox rows not yet delivered",
	},
)

var RemindersEnqueuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reminders_enqueued_total",
		Help: "Total number of reminder notifications enqueued by the scheduler",
	},
	[]string{"type"},
)

// Register регистрирует все метрики ядра в реестре по умолчанию.
func Register() {
	prometheus.MustRegister(
		NotificationsSentTotal,
		NotificationRetriesTotal,
		NotificationsFatalTotal,
		OutboxBacklog,
		RemindersEnqueuedTotal,
	)
}
