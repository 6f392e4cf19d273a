package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for message processing.
type ChatMetrics struct {
	messagesTotal *prometheus.CounterVec
	turnLatency   *prometheus.HistogramVec
	flowsTotal    *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbot",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total processed customer messages",
		}, []string{"intent", "channel", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatbot",
			Subsystem: "chat",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one message turn, end to end",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
		flowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbot",
			Subsystem: "chat",
			Name:      "flows_total",
			Help:      "Flow outcomes by type",
		}, []string{"flow_type", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.turnLatency, m.flowsTotal)
	return m
}

func (m *ChatMetrics) ObserveMessage(intent, channel, status string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(intent, channel, status).Inc()
}

func (m *ChatMetrics) ObserveTurnLatency(intent string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(intent).Observe(seconds)
}

func (m *ChatMetrics) ObserveFlow(flowType, outcome string) {
	if m == nil {
		return
	}
	m.flowsTotal.WithLabelValues(flowType, outcome).Inc()
}

// LiveSupportMetrics exposes counters/gauges for the escalation pipeline.
type LiveSupportMetrics struct {
	escalationsTotal *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	agentsOnline     prometheus.Gauge
}

func NewLiveSupportMetrics(reg prometheus.Registerer) *LiveSupportMetrics {
	m := &LiveSupportMetrics{
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbot",
			Subsystem: "livesupport",
			Name:      "escalations_total",
			Help:      "Total live-support escalation requests",
		}, []string{"status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatbot",
			Subsystem: "livesupport",
			Name:      "queue_depth",
			Help:      "Conversations waiting for an agent",
		}),
		agentsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatbot",
			Subsystem: "livesupport",
			Name:      "agents_online",
			Help:      "Agents connected to the notification socket",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.escalationsTotal, m.queueDepth, m.agentsOnline)
	return m
}

func (m *LiveSupportMetrics) ObserveEscalation(status string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(status).Inc()
}

func (m *LiveSupportMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *LiveSupportMetrics) SetAgentsOnline(n int) {
	if m == nil {
		return
	}
	m.agentsOnline.Set(float64(n))
}
