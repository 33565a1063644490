package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the suggestion and reminder
// flows. All methods are nil-safe so wiring metrics stays optional in tests.
type EngineMetrics struct {
	deliveriesTotal *prometheus.CounterVec
	inboundIntents  *prometheus.CounterVec
	runDuration     prometheus.Histogram
	suggestDuration prometheus.Histogram
	rebookRequests  prometheus.Counter
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinova",
			Subsystem: "reminders",
			Name:      "delivery_attempts_total",
			Help:      "Reminder delivery attempts by channel and outcome",
		}, []string{"channel", "outcome"}),
		inboundIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinova",
			Subsystem: "reminders",
			Name:      "inbound_intents_total",
			Help:      "Classified inbound replies by intent",
		}, []string{"intent"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinova",
			Subsystem: "reminders",
			Name:      "run_duration_seconds",
			Help:      "Duration of one delivery run",
			Buckets:   prometheus.DefBuckets,
		}),
		suggestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinova",
			Subsystem: "scheduling",
			Name:      "suggestion_duration_seconds",
			Help:      "Latency of slot suggestion requests",
			Buckets:   prometheus.DefBuckets,
		}),
		rebookRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinova",
			Subsystem: "reminders",
			Name:      "rebook_requests_total",
			Help:      "Inbound rebook requests handed to the human workflow",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.deliveriesTotal, m.inboundIntents, m.runDuration, m.suggestDuration, m.rebookRequests)
	return m
}

func (m *EngineMetrics) ObserveDelivery(channel, outcome string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *EngineMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.inboundIntents.WithLabelValues(intent).Inc()
}

func (m *EngineMetrics) ObserveRunDuration(seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.Observe(seconds)
}

func (m *EngineMetrics) ObserveSuggestDuration(seconds float64) {
	if m == nil {
		return
	}
	m.suggestDuration.Observe(seconds)
}

func (m *EngineMetrics) ObserveRebookRequest() {
	if m == nil {
		return
	}
	m.rebookRequests.Inc()
}
