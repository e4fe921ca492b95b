package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// Intent classifier
	IntentClassificationsTotal *prometheus.CounterVec
	IntentDurationSeconds      *prometheus.HistogramVec

	// Router
	ChatRepliesTotal *prometheus.CounterVec
	HandoffsTotal    prometheus.Counter

	// Support channel
	SupportSessionsTotal *prometheus.CounterVec
	SupportMessagesTotal *prometheus.CounterVec

	// Directory cache
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered.
func New(registry *prometheus.Registry) *Metrics {
	return &Metrics{
		IntentClassificationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libchat_intent_classifications_total",
				Help: "Total number of intent classifications by provider and outcome",
			},
			[]string{"provider", "outcome"}, // outcome: success, provider_error, parse_error, no_provider
		),

		IntentDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "libchat_intent_duration_seconds",
				Help:    "Language model call duration in seconds by provider",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"provider"},
		),

		ChatRepliesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libchat_chat_replies_total",
				Help: "Total number of chatbot replies by resolved intent",
			},
			[]string{"intent"},
		),

		HandoffsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "libchat_handoffs_total",
				Help: "Total number of messages routed to human support",
			},
		),

		SupportSessionsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libchat_support_sessions_total",
				Help: "Total number of support session requests by result",
			},
			[]string{"result"}, // result: created, reused
		),

		SupportMessagesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libchat_support_messages_total",
				Help: "Total number of support messages by sender role",
			},
			[]string{"role"},
		),

		CacheHitsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libchat_cache_hits_total",
				Help: "Total number of cache hits by module",
			},
			[]string{"module"},
		),

		CacheMissesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libchat_cache_misses_total",
				Help: "Total number of cache misses by module",
			},
			[]string{"module"},
		),

		HTTPRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libchat_http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// RecordClassification records one classifier run.
func (m *Metrics) RecordClassification(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.IntentClassificationsTotal.WithLabelValues(provider, outcome).Inc()
	if seconds > 0 {
		m.IntentDurationSeconds.WithLabelValues(provider).Observe(seconds)
	}
}

// RecordReply records a chatbot reply for the given intent.
func (m *Metrics) RecordReply(intent string) {
	if m == nil {
		return
	}
	m.ChatRepliesTotal.WithLabelValues(intent).Inc()
}

// RecordHandoff records a human handoff request.
func (m *Metrics) RecordHandoff() {
	if m == nil {
		return
	}
	m.HandoffsTotal.Inc()
}

// RecordSupportSession records a create-session call; created is false when an active session was reused.
func (m *Metrics) RecordSupportSession(created bool) {
	if m == nil {
		return
	}
	result := "reused"
	if created {
		result = "created"
	}
	m.SupportSessionsTotal.WithLabelValues(result).Inc()
}

// RecordSupportMessage records a support message by sender role.
func (m *Metrics) RecordSupportMessage(role string) {
	if m == nil {
		return
	}
	m.SupportMessagesTotal.WithLabelValues(role).Inc()
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(module string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(module).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(module string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(module).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
}
