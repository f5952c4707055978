package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the realtime subsystem.
type Metrics struct {
	Sessions    prometheus.Gauge
	EventsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns realtime metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edtriage_realtime_sessions",
			Help: "Currently connected WebSocket sessions.",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edtriage_realtime_events_total",
			Help: "Realtime events broadcast by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(m.Sessions, m.EventsTotal)

	return m
}
