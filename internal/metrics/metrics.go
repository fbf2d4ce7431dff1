package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FetchesTotal counts provider fetch attempts by outcome.
	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecocal",
		Name:      "fetches_total",
		Help:      "Number of provider fetch attempts by status",
	}, []string{"status"})

	// RowsDropped counts rows excluded from a batch because their date could
	// not be parsed.
	RowsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecocal",
		Name:      "rows_dropped_total",
		Help:      "Number of malformed provider rows excluded during normalization",
	})

	// RowsFilteredUnknown counts rows excluded by the unknown-importance
	// display policy.
	RowsFilteredUnknown = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecocal",
		Name:      "rows_filtered_unknown_total",
		Help:      "Number of rows excluded because their importance is unknown",
	})

	// RemindersScheduled counts reminder tasks accepted into the pending set.
	RemindersScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecocal",
		Name:      "reminders_scheduled_total",
		Help:      "Number of reminder tasks created",
	})

	// RemindersFired counts reminder tasks whose send time arrived.
	RemindersFired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecocal",
		Name:      "reminders_fired_total",
		Help:      "Number of reminder tasks fired",
	})

	// NotifyFailures counts mail submissions that failed.
	NotifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecocal",
		Name:      "notify_failures_total",
		Help:      "Number of reminder notifications that failed to send",
	})
)

func init() {
	prometheus.MustRegister(
		FetchesTotal,
		RowsDropped,
		RowsFilteredUnknown,
		RemindersScheduled,
		RemindersFired,
		NotifyFailures,
	)
}
