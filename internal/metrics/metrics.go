// Package metrics exposes the daemon's Prometheus collectors via promauto,
// scaled to the counters this runtime's components actually emit: tool
// calls, LLM requests, and channel message flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates every metric the runtime records. It is safe to
// share across goroutines; each field is itself concurrency-safe.
type Collector struct {
	ToolCallTotal    *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	LLMRequestTotal    *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	MessagesTotal *prometheus.CounterVec
}

// New registers and returns the runtime's collectors against the default
// Prometheus registry. Call once at startup.
func New() *Collector {
	return &Collector{
		ToolCallTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microclaw_tool_calls_total",
			Help: "Total tool invocations by tool name and outcome.",
		}, []string{"tool", "status"}),

		ToolCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "microclaw_tool_call_duration_seconds",
			Help:    "Tool call latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool"}),

		LLMRequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microclaw_llm_requests_total",
			Help: "Total LLM completion requests by model and outcome.",
		}, []string{"model", "status"}),

		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "microclaw_llm_request_duration_seconds",
			Help:    "LLM completion latency in seconds, start to final chunk.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model"}),

		MessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microclaw_messages_total",
			Help: "Total messages moved through a channel adapter.",
		}, []string{"channel", "direction"}),
	}
}

// Handler serves the registered collectors in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
