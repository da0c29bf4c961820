package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	sessionsStartedTotal  prometheus.Counter
	sessionsEndedTotal    *prometheus.CounterVec
	callsCreatedTotal     *prometheus.CounterVec
	callsTerminatedTotal  *prometheus.CounterVec
	chatMessagesSentTotal *prometheus.CounterVec
	chatConnectionsTotal  prometheus.Counter
	registryWatcherGauge  prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telecare_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telecare_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telecare_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		sessionsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telecare_sessions_started_total",
			Help: "Chat sessions registered by patients.",
		})

		sessionsEndedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telecare_sessions_ended_total",
			Help: "Chat sessions removed from the registry, by reason.",
		}, []string{"reason"})

		callsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telecare_calls_created_total",
			Help: "Calls placed into the waiting state, by media kind.",
		}, []string{"call_type"})

		callsTerminatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telecare_calls_terminated_total",
			Help: "Calls reaching a terminal status.",
		}, []string{"status"})

		chatMessagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telecare_chat_messages_sent_total",
			Help: "Chat messages appended to room logs, by type.",
		}, []string{"type"})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telecare_chat_connections_total",
			Help: "Websocket chat connections accepted.",
		})

		registryWatcherGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telecare_registry_watchers",
			Help: "Currently connected registry watch subscribers.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			sessionsStartedTotal, sessionsEndedTotal,
			callsCreatedTotal, callsTerminatedTotal,
			chatMessagesSentTotal, chatConnectionsTotal,
			registryWatcherGauge,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SessionsStarted exposes the session registration counter.
func SessionsStarted() prometheus.Counter {
	RegisterMetrics()
	return sessionsStartedTotal
}

// SessionsEnded exposes the session teardown counter.
func SessionsEnded() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionsEndedTotal
}

// CallsCreated exposes the call creation counter.
func CallsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return callsCreatedTotal
}

// CallsTerminated exposes the terminal call counter.
func CallsTerminated() *prometheus.CounterVec {
	RegisterMetrics()
	return callsTerminatedTotal
}

// ChatMessagesSent exposes the chat message counter.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSentTotal
}

// ChatConnectionsTotal exposes the websocket connection counter.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

// RegistryWatchers exposes the registry watcher gauge.
func RegistryWatchers() prometheus.Gauge {
	RegisterMetrics()
	return registryWatcherGauge
}
