// Package observability provides Prometheus metrics for model API calls
// and HTTP middleware for the bundled servers.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/modelapi/pkg/api"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Outcome labels for ProviderRequestsTotal.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusRetry = "retry"
)

var (
	// RequestsTotal counts HTTP requests served by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelapi_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelapi_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// ProviderRequestsTotal counts generate attempts sent to backends by outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelapi_provider_requests_total",
			Help: "Provider generate attempts",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records backend latency in seconds, as measured by
	// the request correlation hooks.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelapi_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelapi_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// ProviderInFlight tracks generate calls holding a connection slot.
	ProviderInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modelapi_provider_in_flight",
			Help: "Generate calls in flight per connection key",
		},
		[]string{"connection_key"},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelapi_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// RateLimitWaitSeconds records time spent waiting on the request pacer.
	RateLimitWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelapi_ratelimit_wait_seconds",
			Help:    "Time spent waiting for rate limit tokens",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// RateLimitRejectedTotal counts inbound requests rejected by the
	// per-key limiter, by service tier.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelapi_ratelimit_rejected_total",
			Help: "Requests rejected by the inbound rate limiter",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		ProviderInFlight,
		ToolExecutionsTotal,
		RateLimitWaitSeconds,
		RateLimitRejectedTotal,
	)
}

// RecordAttempt records one generate attempt. call and usage may be nil.
func RecordAttempt(providerName, model, status string, call *api.ModelCall, usage *api.ModelUsage) {
	ProviderRequestsTotal.WithLabelValues(providerName, model, status).Inc()
	if call != nil {
		ProviderLatency.WithLabelValues(providerName, model).Observe(call.Time().Seconds())
	}
	if usage != nil {
		ProviderTokensTotal.WithLabelValues(providerName, model, "input").Add(float64(usage.InputTokens))
		ProviderTokensTotal.WithLabelValues(providerName, model, "output").Add(float64(usage.OutputTokens))
	}
}

// RecordRateLimitWait records a pacer wait.
func RecordRateLimitWait(providerName string, d time.Duration) {
	RateLimitWaitSeconds.WithLabelValues(providerName).Observe(d.Seconds())
}
