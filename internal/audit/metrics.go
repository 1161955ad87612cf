package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpihub",
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total number of audit entries recorded",
		},
		[]string{"category", "outcome"},
	)

	sinkFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocpihub",
			Subsystem: "audit",
			Name:      "sink_failures_total",
			Help:      "Total number of swallowed audit sink failures",
		},
	)
)

// RecordEntry counts a persisted audit entry.
func RecordEntry(category, outcome string) {
	entriesTotal.WithLabelValues(category, outcome).Inc()
}

// RecordSinkFailure counts a swallowed sink failure.
func RecordSinkFailure() {
	sinkFailuresTotal.Inc()
}
