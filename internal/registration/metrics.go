package registration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var handshakesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ocpihub",
		Subsystem: "registration",
		Name:      "handshakes_total",
		Help:      "Total number of credentials handshake operations by outcome",
	},
	[]string{"operation", "outcome"},
)

// RecordHandshake counts one handshake operation outcome.
func RecordHandshake(operation, outcome string) {
	handshakesTotal.WithLabelValues(operation, outcome).Inc()
}
