package audit

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters for audit record writes. Failed writes never
// surface to callers of Recorder, so the failure counter is the only way an
// operator can observe lost records.
type Metrics struct {
	WritesTotal        *prometheus.CounterVec
	WriteFailuresTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the audit metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		WritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checker_maker_audit_writes_total",
				Help: "Total number of audit records written",
			},
			[]string{"event_type"},
		),
		WriteFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checker_maker_audit_write_failures_total",
				Help: "Total number of audit record writes that failed and were dropped",
			},
			[]string{"event_type"},
		),
	}

	if registry != nil {
		registry.MustRegister(m.WritesTotal, m.WriteFailuresTotal)
	}
	return m
}
