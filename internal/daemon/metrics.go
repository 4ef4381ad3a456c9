package daemon

import (
	"github.com/prometheus/client_golang/prometheus"

	"scribed/internal/residency"
)

var (
	ipcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribed",
			Subsystem: "ipc",
			Name:      "requests_total",
			Help:      "Total number of socket requests",
		},
		[]string{"action", "outcome"},
	)

	ipcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scribed",
			Subsystem: "ipc",
			Name:      "request_duration_seconds",
			Help:      "Duration of socket requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	ipcOpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scribed",
			Subsystem: "ipc",
			Name:      "open_connections",
			Help:      "Currently open socket connections",
		},
	)

	engineLoadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scribed",
			Subsystem: "engine",
			Name:      "loads_total",
			Help:      "Total engine model loads",
		},
	)

	transcribeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scribed",
			Subsystem: "engine",
			Name:      "transcribe_duration_seconds",
			Help:      "Wall-clock duration of transcriptions in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
)

func init() {
	prometheus.MustRegister(ipcRequestsTotal, ipcRequestDuration, ipcOpenConnections, engineLoadsTotal, transcribeDuration)
}

func observeRequest(action, outcome string, seconds float64) {
	ipcRequestsTotal.WithLabelValues(action, outcome).Inc()
	ipcRequestDuration.WithLabelValues(action).Observe(seconds)
}

// MetricsPublisher bridges residency lifecycle events into Prometheus.
type MetricsPublisher struct{}

func (MetricsPublisher) Publish(e residency.Event) {
	if e.Name == "load_ready" {
		engineLoadsTotal.Inc()
	}
}
