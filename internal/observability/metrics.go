package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebSocket metrics
	WebSocketConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections per room",
		},
		[]string{"room"},
	)

	WebSocketEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_events_sent_total",
			Help: "Total number of events fanned out to WebSocket clients",
		},
		[]string{"room", "event"},
	)

	ChatMessagesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_saved_total",
			Help: "Total number of chat messages persisted",
		},
		[]string{"room"},
	)

	ChatOperationsDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_operations_denied_total",
			Help: "Total number of chat operations rejected by moderation",
		},
		[]string{"action", "reason"},
	)

	// Guest throttle metrics
	GuestThrottleHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_guest_throttle_hits_total",
			Help: "Total number of assistant requests rejected by the guest cap",
		},
	)

	// Messaging metrics
	AssistantRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_requests_total",
			Help: "Total number of assistant questions forwarded to the worker",
		},
		[]string{"outcome"},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"operation", "table"},
	)

	MessagesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_expired_total",
			Help: "Total number of chat messages removed by the retention sweep",
		},
	)
)
