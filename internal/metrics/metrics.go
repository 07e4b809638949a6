// Package metrics exposes the Prometheus collectors wired into the tool
// registry and the channel router: tool execution counts/latency, channel
// message counts by direction, and LLM request counts/latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector this gateway registers. Construct one with
// New and share it across the registry, router, and agent runtime.
type Metrics struct {
	ToolExecutionCounter  *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	MessageCounter *prometheus.CounterVec

	LLMRequestCounter  *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
}

// New creates and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer to expose metrics on the process-wide
// /metrics endpoint.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentbridge_tool_executions_total",
				Help: "Total number of tool executions by tool name and status.",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentbridge_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		MessageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentbridge_channel_messages_total",
				Help: "Total number of ChannelEvents/AgentResponses routed, by channel and direction.",
			},
			[]string{"channel", "direction"},
		),
		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentbridge_llm_requests_total",
				Help: "Total number of LLM provider requests by provider and status.",
			},
			[]string{"provider", "status"},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentbridge_llm_request_duration_seconds",
				Help:    "Duration of LLM provider requests in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
	}
}

// ObserveToolExecution records one tool call's outcome and latency.
func (m *Metrics) ObserveToolExecution(toolName string, started time.Time, isError bool) {
	if m == nil {
		return
	}
	status := "success"
	if isError {
		status = "error"
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(time.Since(started).Seconds())
}

// ObserveMessage records one message routed through a channel in the given
// direction ("inbound" or "outbound").
func (m *Metrics) ObserveMessage(channel, direction string) {
	if m == nil {
		return
	}
	m.MessageCounter.WithLabelValues(channel, direction).Inc()
}

// ObserveLLMRequest records one LLM provider call's outcome and latency.
func (m *Metrics) ObserveLLMRequest(provider string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.LLMRequestCounter.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}
