package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec

	chatConnectionsActive  prometheus.Gauge
	chatConnectionsTotal   prometheus.Counter
	chatEventsTotal        *prometheus.CounterVec
	chatMessagesSentTotal  prometheus.Counter
	chatDroppedEventsTotal *prometheus.CounterVec
	presenceOnlineUsers    prometheus.Gauge

	notificationsCreatedTotal *prometheus.CounterVec
	notificationCacheTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		chatConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Websocket chat connections currently open.",
		})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Websocket chat connections accepted since start.",
		})

		chatEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Client chat events processed, by event name and outcome.",
		}, []string{"event", "outcome"})

		chatMessagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Chat messages persisted.",
		})

		chatDroppedEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_dropped_events_total",
			Help: "Server events dropped because the connection queue was full or closed.",
		}, []string{"event"})

		presenceOnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_online_users",
			Help: "Users with an active chat connection.",
		})

		notificationsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications stored, by type.",
		}, []string{"type"})

		notificationCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_unread_cache_total",
			Help: "Unread count cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			chatConnectionsActive,
			chatConnectionsTotal,
			chatEventsTotal,
			chatMessagesSentTotal,
			chatDroppedEventsTotal,
			presenceOnlineUsers,
			notificationsCreatedTotal,
			notificationCacheTotal,
		)
	})
}

// HTTPRequests exposes the counter for HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// ChatConnectionsActive exposes the open connection gauge.
func ChatConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return chatConnectionsActive
}

// ChatConnectionsTotal exposes the accepted connection counter.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

// ChatEvents exposes the processed client event counter.
func ChatEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return chatEventsTotal
}

// ChatMessagesSent exposes the persisted message counter.
func ChatMessagesSent() prometheus.Counter {
	RegisterMetrics()
	return chatMessagesSentTotal
}

// ChatDroppedEvents exposes the dropped server event counter.
func ChatDroppedEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return chatDroppedEventsTotal
}

// PresenceOnlineUsers exposes the online user gauge.
func PresenceOnlineUsers() prometheus.Gauge {
	RegisterMetrics()
	return presenceOnlineUsers
}

// NotificationsCreated exposes the stored notification counter.
func NotificationsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsCreatedTotal
}

// NotificationCache exposes the unread count cache counter.
func NotificationCache() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationCacheTotal
}
