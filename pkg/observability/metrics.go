// Package observability holds the Prometheus metrics of the chat server
// and the HTTP middleware that records per-route traffic.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aichat"

// LLMBuckets spans 100ms to 2 minutes, the range of a streamed reply.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Outcomes of a provider stream.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Results of committing an assistant turn.
const (
	CommitComplete = "complete"
	CommitPartial  = "partial"
)

var (
	// HTTP traffic, labelled with the matched mux pattern.
	RequestsTotal        = counterVec("requests_total", "HTTP requests by method, status class and route.", "method", "status", "route")
	RequestDuration      = histogramVec("request_duration_seconds", "HTTP request duration.", "method", "route")
	StreamingConnections = gauge("streaming_connections_active", "SSE responses currently open.")

	// Provider streams.
	ProviderRequestsTotal  = counterVec("provider_requests_total", "Provider streams by outcome.", "provider", "model", "status")
	ProviderLatency        = histogramVec("provider_latency_seconds", "Time from request to end of stream.", "provider", "model")
	ProviderFragmentsTotal = counterVec("provider_fragments_total", "Fragments relayed to clients.", "provider", "model")
	ProviderFallbacksTotal = counterVec("provider_fallbacks_total", "Adapter fallbacks taken at startup.", "provider", "fallback")

	// Conversations and sessions.
	CommitsTotal        = counterVec("conversation_commits_total", "Assistant turns stored, complete or partial.", "result")
	SessionsIssuedTotal = counter("sessions_issued_total", "Session cookies issued to new clients.")
	PromptCacheTotal    = counterVec("prompt_cache_total", "System prompt cache lookups.", "result")
	AuthRejectedTotal   = counter("auth_rejected_total", "Requests rejected by the login gate.")
)

// ObserveStream records the outcome and duration of one provider stream.
func ObserveStream(provider, model, outcome string, started time.Time) {
	ProviderRequestsTotal.WithLabelValues(provider, model, outcome).Inc()
	ProviderLatency.WithLabelValues(provider, model).Observe(time.Since(started).Seconds())
}

// ObserveCommit records a stored assistant turn. Any outcome other than
// OutcomeOK leaves a partial reply.
func ObserveCommit(outcome string) {
	result := CommitComplete
	if outcome != OutcomeOK {
		result = CommitPartial
	}
	CommitsTotal.WithLabelValues(result).Inc()
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	prometheus.MustRegister(c)
	return c
}

func counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	prometheus.MustRegister(c)
	return c
}

func gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	prometheus.MustRegister(g)
	return g
}

func histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: LLMBuckets}, labels)
	prometheus.MustRegister(h)
	return h
}
