package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatched_total",
			Help: "Total number of story event notifications dispatched",
		},
		[]string{"channel"},
	)

	sentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_sent_total",
			Help: "Total number of story event notifications sent",
		},
		[]string{"channel", "status"},
	)

	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_send_duration_seconds",
			Help:    "Notification send duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	circuitOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_circuit_breaker_open_total",
			Help: "Total number of channel circuit breaker open events",
		},
		[]string{"channel"},
	)

	droppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dropped_total",
			Help: "Total number of dropped notifications",
		},
		[]string{"channel", "reason"},
	)

	activeGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_active_goroutines",
			Help: "Number of in-flight notification goroutines",
		},
	)

	channelsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_channels_enabled",
			Help: "Number of enabled notification channels",
		},
	)
)

func recordDispatch(channel string) { dispatchedTotal.WithLabelValues(channel).Inc() }

func recordSuccess(channel string, d time.Duration) {
	sentTotal.WithLabelValues(channel, "success").Inc()
	sendDuration.WithLabelValues(channel).Observe(d.Seconds())
}

func recordFailure(channel string, d time.Duration) {
	sentTotal.WithLabelValues(channel, "failure").Inc()
	sendDuration.WithLabelValues(channel).Observe(d.Seconds())
}

func recordDropped(channel, reason string) { droppedTotal.WithLabelValues(channel, reason).Inc() }

func recordCircuitBreakerOpen(channel string) { circuitOpenTotal.WithLabelValues(channel).Inc() }

func setChannelsEnabled(count float64) { channelsEnabled.Set(count) }
