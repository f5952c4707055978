package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	AssessmentsTotal   *prometheus.CounterVec
	AssessorCallsTotal *prometheus.CounterVec
	AssessorDuration   prometheus.Histogram
	SubmitsTotal       *prometheus.CounterVec
	StatusUpdatesTotal *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edtriage_assessments_total",
			Help: "Total classifications by path (assessor/fallback) and level.",
		}, []string{"path", "level"}),
		AssessorCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edtriage_assessor_calls_total",
			Help: "External assessor calls by outcome.",
		}, []string{"outcome"}),
		AssessorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edtriage_assessor_call_duration_seconds",
			Help:    "Duration of external assessor calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 9), // 0.1s .. ~25.6s
		}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edtriage_submits_total",
			Help: "Triage submissions by result.",
		}, []string{"result"}),
		StatusUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edtriage_status_updates_total",
			Help: "Triage status transitions by new status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.AssessmentsTotal,
		m.AssessorCallsTotal,
		m.AssessorDuration,
		m.SubmitsTotal,
		m.StatusUpdatesTotal,
	)

	return m
}

// Hooks returns EngineHooks that increment the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnAssessed: func(path string, level Level) {
			m.AssessmentsTotal.WithLabelValues(path, string(level)).Inc()
		},
		OnAssessorCall: func(duration float64, failed bool) {
			outcome := "success"
			if failed {
				outcome = "error"
			}
			m.AssessorCallsTotal.WithLabelValues(outcome).Inc()
			m.AssessorDuration.Observe(duration)
		},
	}
}
