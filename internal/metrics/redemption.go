package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		redemptionsTotal,
		rateLimitedTotal,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "premium_redemptions_total",
			Help: "Redemption attempts by outcome.",
		},
		[]string{"result"}, // 'activated', 'already_activated', or an error code
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "premium_rate_limited_total",
			Help: "Redemption attempts rejected by the rate limiter.",
		},
	)
)

func RecordRedemption(result string) {
	redemptionsTotal.WithLabelValues(result).Inc()
}

func RecordRateLimited() {
	rateLimitedTotal.Inc()
}
