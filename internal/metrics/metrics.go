package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks relay outcomes for the /metrics endpoint.
//
// Metrics:
//   - hdcoach_relay_requests_total: relay requests by terminal status
//   - hdcoach_relay_webhook_attempts_total: per-webhook attempts by outcome
//   - hdcoach_relay_fallback_total: directory failures that forced the fallback
//   - hdcoach_relay_attempt_duration_seconds: upstream call latency
//
// A nil *RelayMetrics is valid and records nothing, so tests can pass nil.
type RelayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	attemptsTotal   *prometheus.CounterVec
	fallbackTotal   prometheus.Counter
	attemptDuration *prometheus.HistogramVec
}

// NewRelayMetrics creates and registers relay metrics with the registry.
func NewRelayMetrics(registry *prometheus.Registry) *RelayMetrics {
	m := &RelayMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hdcoach",
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Total relay requests by terminal status code",
			},
			[]string{"status"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hdcoach",
				Subsystem: "relay",
				Name:      "webhook_attempts_total",
				Help:      "Upstream webhook attempts by webhook name and outcome",
			},
			[]string{"webhook", "outcome"},
		),
		fallbackTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hdcoach",
				Subsystem: "relay",
				Name:      "fallback_total",
				Help:      "Requests that used the hardcoded fallback webhook",
			},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hdcoach",
				Subsystem: "relay",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of upstream webhook calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"webhook"},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.attemptsTotal,
		m.fallbackTotal,
		m.attemptDuration,
	)

	return m
}

func (m *RelayMetrics) RecordRequest(status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(status).Inc()
}

func (m *RelayMetrics) RecordAttempt(webhook, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(webhook, outcome).Inc()
}

func (m *RelayMetrics) RecordFallback() {
	if m == nil {
		return
	}
	m.fallbackTotal.Inc()
}

func (m *RelayMetrics) ObserveAttemptDuration(webhook string, d time.Duration) {
	if m == nil {
		return
	}
	m.attemptDuration.WithLabelValues(webhook).Observe(d.Seconds())
}
