// Package metrics defines the Prometheus instrumentation for the real-time
// delivery layer: connection counts, push outcomes, stream subscribers, and
// reminder scheduler activity.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OnlineConns tracks the number of registered WebSocket connections.
	OnlineConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskhub_online_conns",
		Help: "Current registered websocket connections.",
	})

	// PushOK counts envelopes queued to a connection successfully.
	PushOK = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_push_ok_total",
		Help: "Total envelopes queued to an outbound connection successfully.",
	})

	// PushDropped counts envelopes dropped because an outbound queue was full.
	PushDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_push_dropped_total",
		Help: "Total envelopes dropped because the outbound queue was full.",
	})

	// PushOffline counts sends targeting a user with no active connection.
	PushOffline = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_push_offline_total",
		Help: "Total sends targeting a user with no active connection.",
	})

	// StreamSubscribers tracks open SSE topic subscriptions.
	StreamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskhub_stream_subscribers",
		Help: "Current open SSE topic subscriptions.",
	})

	// SchedulerTicks counts reminder scheduler ticks.
	SchedulerTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_scheduler_ticks_total",
		Help: "Total reminder scheduler ticks.",
	})

	// SchedulerFailures counts reminder records whose processing failed.
	SchedulerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_scheduler_failures_total",
		Help: "Total reminder records whose processing failed.",
	})
)

// Register registers all collectors with the default registry. Call once at
// startup.
func Register() {
	prometheus.MustRegister(
		OnlineConns,
		PushOK, PushDropped, PushOffline,
		StreamSubscribers,
		SchedulerTicks, SchedulerFailures,
	)
}
