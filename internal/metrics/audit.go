package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		auditDroppedTotal,
		auditPersistErrorsTotal,
	)
}

var (
	auditDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "premium_audit_dropped_total",
			Help: "Activation events dropped because the audit queue was full.",
		},
	)

	auditPersistErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "premium_audit_persist_errors_total",
			Help: "Activation events that failed to persist.",
		},
	)
)

func RecordAuditDropped() {
	auditDroppedTotal.Inc()
}

func RecordAuditPersistError() {
	auditPersistErrorsTotal.Inc()
}
