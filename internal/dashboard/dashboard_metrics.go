package dashboard

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the dashboard subsystem.
type Metrics struct {
	ReadsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns dashboard metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edtriage_dashboard_reads_total",
			Help: "Dashboard overview reads by cache outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.ReadsTotal)

	return m
}
