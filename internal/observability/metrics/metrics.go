package metrics

import "github.com/prometheus/client_golang/prometheus"

// SupportMetrics exposes counters/histograms for the support bot flows.
type SupportMetrics struct {
	processedTotal      *prometheus.CounterVec
	escalationsTotal    *prometheus.CounterVec
	classifierFallbacks *prometheus.CounterVec
	pollItemsTotal      *prometheus.CounterVec
	processLatency      *prometheus.HistogramVec
}

func NewSupportMetrics(reg prometheus.Registerer) *SupportMetrics {
	m := &SupportMetrics{
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Subsystem: "router",
			Name:      "messages_processed_total",
			Help:      "Total inbound messages processed by channel and intent",
		}, []string{"channel", "intent", "status"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Subsystem: "router",
			Name:      "escalations_total",
			Help:      "Ticket escalations by delivery outcome",
		}, []string{"outcome"}),
		classifierFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Subsystem: "classifier",
			Name:      "fallback_total",
			Help:      "Classifications resolved by keyword rules, by reason",
		}, []string{"reason"}),
		pollItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Subsystem: "monitor",
			Name:      "items_total",
			Help:      "Items seen by the platform poller by source and status",
		}, []string{"source", "status"}),
		processLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supportbot",
			Subsystem: "router",
			Name:      "process_latency_seconds",
			Help:      "Latency of routing a single message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.processedTotal, m.escalationsTotal, m.classifierFallbacks, m.pollItemsTotal, m.processLatency)
	return m
}

func (m *SupportMetrics) ObserveProcessed(channel, intent, status string) {
	if m == nil {
		return
	}
	m.processedTotal.WithLabelValues(channel, intent, status).Inc()
}

// ObserveEscalation records an escalation attempt. Outcome is one of
// delivered, failed, or suppressed.
func (m *SupportMetrics) ObserveEscalation(outcome string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(outcome).Inc()
}

func (m *SupportMetrics) ObserveClassifierFallback(reason string) {
	if m == nil {
		return
	}
	m.classifierFallbacks.WithLabelValues(reason).Inc()
}

func (m *SupportMetrics) ObservePollItem(source, status string) {
	if m == nil {
		return
	}
	m.pollItemsTotal.WithLabelValues(source, status).Inc()
}

func (m *SupportMetrics) ObserveProcessLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.processLatency.WithLabelValues(channel).Observe(seconds)
}
