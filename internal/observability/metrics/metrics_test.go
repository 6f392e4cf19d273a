package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)
	m.ObserveMessage("ORDER_HISTORY", "widget", "ok")
	m.ObserveTurnLatency("ORDER_HISTORY", 0.2)
	m.ObserveFlow("verify", "completed")
}

func TestChatMetricsNilSafe(t *testing.T) {
	var m *ChatMetrics
	m.ObserveMessage("GENERAL_INFO", "widget", "ok")
	m.ObserveTurnLatency("GENERAL_INFO", 0.1)
	m.ObserveFlow("verify", "cancelled")
}

func TestLiveSupportMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLiveSupportMetrics(reg)
	m.ObserveEscalation("queued")
	m.SetQueueDepth(3)
	m.SetAgentsOnline(2)
}

func TestLiveSupportMetricsNilSafe(t *testing.T) {
	var m *LiveSupportMetrics
	m.ObserveEscalation("queued")
	m.SetQueueDepth(0)
	m.SetAgentsOnline(0)
}
