package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(codesIssuedTotal)
}

var codesIssuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "premium_codes_issued_total",
		Help: "Codes issued by type.",
	},
	[]string{"type"},
)

func RecordIssued(codeType string, n int) {
	codesIssuedTotal.WithLabelValues(codeType).Add(float64(n))
}
