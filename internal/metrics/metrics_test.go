package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(redemptionsTotal.WithLabelValues("activated"))
	RecordRedemption("activated")
	assert.Equal(t, before+1, testutil.ToFloat64(redemptionsTotal.WithLabelValues("activated")))

	before = testutil.ToFloat64(codesIssuedTotal.WithLabelValues("demo"))
	RecordIssued("demo", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(codesIssuedTotal.WithLabelValues("demo")))

	before = testutil.ToFloat64(rateLimitedTotal)
	RecordRateLimited()
	assert.Equal(t, before+1, testutil.ToFloat64(rateLimitedTotal))

	before = testutil.ToFloat64(auditDroppedTotal)
	RecordAuditDropped()
	assert.Equal(t, before+1, testutil.ToFloat64(auditDroppedTotal))
}

func TestMustRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
