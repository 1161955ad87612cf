package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpihub",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events published to the dispatch queue",
		},
		[]string{"kind", "action"},
	)

	eventsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ocpihub",
			Subsystem: "events",
			Name:      "queue_depth",
			Help:      "Current depth of the event dispatch queue",
		},
	)

	eventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpihub",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total number of events dropped because the dispatch queue was full",
		},
		[]string{"kind"},
	)

	subscriberPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpihub",
			Subsystem: "events",
			Name:      "subscriber_panics_total",
			Help:      "Total number of panics recovered from event subscribers",
		},
		[]string{"kind"},
	)
)

// RecordEventPublished records an event being enqueued for dispatch.
func RecordEventPublished(kind, action string) {
	eventsPublishedTotal.WithLabelValues(kind, action).Inc()
}

// RecordQueueDepth updates the current dispatch queue depth.
func RecordQueueDepth(depth float64) {
	eventsQueueDepth.Set(depth)
}

// RecordEventDropped records an event dropped on a full dispatch queue.
func RecordEventDropped(kind string) {
	eventsDroppedTotal.WithLabelValues(kind).Inc()
}

// RecordSubscriberPanic records a recovered subscriber panic.
func RecordSubscriberPanic(kind string) {
	subscriberPanicsTotal.WithLabelValues(kind).Inc()
}
