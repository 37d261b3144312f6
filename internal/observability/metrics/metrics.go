package metrics

import "github.com/prometheus/client_golang/prometheus"

// CrisisMetrics exposes counters/histograms for the crisis pipeline.
type CrisisMetrics struct {
	assessmentsTotal  *prometheus.CounterVec
	analyzerFailures  *prometheus.CounterVec
	analyzerLatency   *prometheus.HistogramVec
	escalationsTotal  prometheus.Counter
	interventionsTotal *prometheus.CounterVec
	stageFailures     *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
}

func NewCrisisMetrics(reg prometheus.Registerer) *CrisisMetrics {
	m := &CrisisMetrics{
		assessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "havenmind",
			Subsystem: "crisis",
			Name:      "assessments_total",
			Help:      "Total fused crisis assessments by resulting risk level",
		}, []string{"risk_level", "escalated"}),
		analyzerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "havenmind",
			Subsystem: "crisis",
			Name:      "analyzer_failures_total",
			Help:      "Analyzer calls degraded to a failure assessment",
		}, []string{"analyzer"}),
		analyzerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "havenmind",
			Subsystem: "crisis",
			Name:      "analyzer_latency_seconds",
			Help:      "Latency of individual analyzer runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"analyzer"}),
		escalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "havenmind",
			Subsystem: "crisis",
			Name:      "escalation_overrides_total",
			Help:      "Fusions forced to critical by the escalation override",
		}),
		interventionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "havenmind",
			Subsystem: "crisis",
			Name:      "interventions_total",
			Help:      "Intervention protocol stages executed",
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "havenmind",
			Subsystem: "crisis",
			Name:      "stage_failures_total",
			Help:      "Intervention stages that failed (isolated, pipeline continued)",
		}, []string{"stage"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "havenmind",
			Subsystem: "crisis",
			Name:      "notifications_total",
			Help:      "Outbound crisis notifications by channel and status",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.assessmentsTotal,
		m.analyzerFailures,
		m.analyzerLatency,
		m.escalationsTotal,
		m.interventionsTotal,
		m.stageFailures,
		m.notificationsTotal,
	)
	return m
}

func (m *CrisisMetrics) ObserveAssessment(riskLevel string, escalated bool) {
	if m == nil {
		return
	}
	label := "false"
	if escalated {
		label = "true"
	}
	m.assessmentsTotal.WithLabelValues(riskLevel, label).Inc()
}

func (m *CrisisMetrics) ObserveAnalyzerFailure(analyzer string) {
	if m == nil {
		return
	}
	m.analyzerFailures.WithLabelValues(analyzer).Inc()
}

func (m *CrisisMetrics) ObserveAnalyzerLatency(analyzer string, seconds float64) {
	if m == nil {
		return
	}
	m.analyzerLatency.WithLabelValues(analyzer).Observe(seconds)
}

func (m *CrisisMetrics) ObserveEscalationOverride() {
	if m == nil {
		return
	}
	m.escalationsTotal.Inc()
}

func (m *CrisisMetrics) ObserveStage(stage string) {
	if m == nil {
		return
	}
	m.interventionsTotal.WithLabelValues(stage).Inc()
}

func (m *CrisisMetrics) ObserveStageFailure(stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}

func (m *CrisisMetrics) ObserveNotification(channel, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(channel, status).Inc()
}
