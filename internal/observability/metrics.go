package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's HTTP and store metrics. Per-package counters
// (events, audit, registration) live next to their packages; this type covers
// the serving surface.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge

	StoreEntities *prometheus.GaugeVec

	PartiesRegistered prometheus.Gauge
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// InitMetrics creates (once) and returns the metrics set.
func InitMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "ocpihub",
					Name:      "http_requests_total",
					Help:      "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "ocpihub",
					Name:      "http_request_duration_seconds",
					Help:      "HTTP request duration in seconds",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
			HTTPInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "ocpihub",
					Name:      "http_requests_in_flight",
					Help:      "Number of HTTP requests currently being served",
				},
			),
			StoreEntities: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "ocpihub",
					Subsystem: "store",
					Name:      "entities",
					Help:      "Number of entities per store kind",
				},
				[]string{"kind"},
			),
			PartiesRegistered: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "ocpihub",
					Name:      "parties_registered",
					Help:      "Number of registered remote parties",
				},
			),
		}
	})

	return metricsInstance
}

// GetMetrics returns the metrics set, initializing it if needed.
func GetMetrics() *Metrics {
	return InitMetrics()
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetStoreEntities sets the entity count gauge for one store kind.
func (m *Metrics) SetStoreEntities(kind string, count int) {
	m.StoreEntities.WithLabelValues(kind).Set(float64(count))
}

// SetPartiesRegistered sets the registered party gauge.
func (m *Metrics) SetPartiesRegistered(count int) {
	m.PartiesRegistered.Set(float64(count))
}

// HTTPInFlightInc increments the in-flight request gauge.
func (m *Metrics) HTTPInFlightInc() { m.HTTPInFlight.Inc() }

// HTTPInFlightDec decrements the in-flight request gauge.
func (m *Metrics) HTTPInFlightDec() { m.HTTPInFlight.Dec() }
