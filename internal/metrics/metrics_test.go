package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveToolExecutionRecordsCountAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveToolExecution("system.run", time.Now().Add(-10*time.Millisecond), false)
	m.ObserveToolExecution("system.run", time.Now().Add(-10*time.Millisecond), true)

	expected := `
		# HELP agentbridge_tool_executions_total Total number of tool executions by tool name and status.
		# TYPE agentbridge_tool_executions_total counter
		agentbridge_tool_executions_total{status="error",tool_name="system.run"} 1
		agentbridge_tool_executions_total{status="success",tool_name="system.run"} 1
	`
	if err := testutil.CollectAndCompare(m.ToolExecutionCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected tool execution counter: %v", err)
	}
	if count := testutil.CollectAndCount(m.ToolExecutionDuration); count != 1 {
		t.Errorf("expected 1 duration series, got %d", count)
	}
}

func TestObserveMessageRecordsChannelAndDirection(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveMessage("telegram", "inbound")
	m.ObserveMessage("telegram", "inbound")
	m.ObserveMessage("ws", "outbound")

	expected := `
		# HELP agentbridge_channel_messages_total Total number of ChannelEvents/AgentResponses routed, by channel and direction.
		# TYPE agentbridge_channel_messages_total counter
		agentbridge_channel_messages_total{channel="telegram",direction="inbound"} 2
		agentbridge_channel_messages_total{channel="ws",direction="outbound"} 1
	`
	if err := testutil.CollectAndCompare(m.MessageCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected message counter: %v", err)
	}
}

func TestObserveLLMRequestRecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveLLMRequest("anthropic", time.Now(), nil)

	expected := `
		# HELP agentbridge_llm_requests_total Total number of LLM provider requests by provider and status.
		# TYPE agentbridge_llm_requests_total counter
		agentbridge_llm_requests_total{provider="anthropic",status="success"} 1
	`
	if err := testutil.CollectAndCompare(m.LLMRequestCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected llm request counter: %v", err)
	}
}

func TestNilMetricsObserveIsNoOp(t *testing.T) {
	var m *Metrics
	m.ObserveToolExecution("system.run", time.Now(), false)
	m.ObserveMessage("telegram", "inbound")
	m.ObserveLLMRequest("anthropic", time.Now(), nil)
}
