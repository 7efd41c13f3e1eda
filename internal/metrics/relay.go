package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for relay traffic and membership state.
var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_relay_active_connections",
		Help: "The number of active WebSocket connections",
	})

	ActiveGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_relay_active_groups",
		Help: "The number of groups with at least one member",
	})

	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_relay_messages_received_total",
		Help: "The total number of websocket messages received from clients",
	})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_relay_messages_sent_total",
		Help: "The total number of websocket messages sent to clients",
	})

	MessageSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_relay_message_size_bytes",
		Help:    "Size of received messages in bytes",
		Buckets: prometheus.ExponentialBuckets(10, 10, 6),
	})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_events_received_total",
		Help: "The total number of client events received by kind",
	}, []string{"kind"})

	EventProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_relay_event_processing_duration_seconds",
		Help:    "Time to process client events by kind",
		Buckets: prometheus.ExponentialBuckets(0.0001, 10, 6),
	}, []string{"kind"})

	PushesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_pushes_delivered_total",
		Help: "The total number of outbound pushes delivered by kind",
	}, []string{"kind"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_events_dropped_total",
		Help: "The total number of events dropped by reason",
	}, []string{"reason"})

	BridgeMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_bridge_messages_total",
		Help: "The total number of event-bus messages by channel and outcome",
	}, []string{"channel", "outcome"})

	HandshakeRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_handshake_refusals_total",
		Help: "The total number of refused connection attempts by reason",
	}, []string{"reason"})
)

// Local atomic counters mirror a few gauges so the rest of the process can
// read them without scraping.
var (
	activeConnectionsCount int64
	messagesSentCount      int64
	errorCount             int64
)

func IncrementActiveConnections() {
	atomic.AddInt64(&activeConnectionsCount, 1)
	ActiveConnections.Inc()
}

func DecrementActiveConnections() {
	atomic.AddInt64(&activeConnectionsCount, -1)
	ActiveConnections.Dec()
}

func GetActiveConnectionsCount() int64 {
	return atomic.LoadInt64(&activeConnectionsCount)
}

func IncrementMessagesSent() {
	MessagesSent.Inc()
	atomic.AddInt64(&messagesSentCount, 1)
}

func GetMessagesSentCount() int64 {
	return atomic.LoadInt64(&messagesSentCount)
}

func IncrementErrorCount() {
	atomic.AddInt64(&errorCount, 1)
}

func GetErrorCount() int64 {
	return atomic.LoadInt64(&errorCount)
}
