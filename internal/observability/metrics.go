package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Messages persisted by the messaging service",
		},
	)

	ConversationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_conversations_created_total",
			Help: "Conversations created by the resolver",
		},
		[]string{"scope"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Current number of live websocket sessions on this instance",
		},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Realtime events delivered to local sessions",
		},
		[]string{"type"},
	)

	RealtimeRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_rejected_total",
			Help: "Rejected realtime handshakes and client frames",
		},
		[]string{"reason"},
	)

	OutboxPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Outbox events that failed to publish",
		},
		[]string{"topic"},
	)

	PushNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_notifications_total",
			Help: "Push notification outcomes",
		},
		[]string{"outcome"},
	)

	StoreRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_transient_retries_total",
			Help: "Store operations retried after a transient error",
		},
	)
)
