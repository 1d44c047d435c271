package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(DefaultConfig("production-service"))

	m.RecordStep("WASH", "BIN_ASSIGNED", true, 10*time.Millisecond)
	m.RecordStep("WASH", "BIN_ASSIGNED", false, 10*time.Millisecond)
	m.RecordMatch("EXACT")
	m.RecordBinAllocation("STORAGE", false)
	m.SetOutboxPending(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsAdvanced.WithLabelValues("WASH", "BIN_ASSIGNED", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsAdvanced.WithLabelValues("WASH", "BIN_ASSIGNED", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchesTotal.WithLabelValues("EXACT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BinAllocations.WithLabelValues("STORAGE", "failure")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.OutboxPending))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordStep("QC", "COMPLETED", true, time.Second)
		m.RecordTransactionRetry("advance")
		m.RecordDefect("MEASUREMENT", "MAJOR")
		m.SetCircuitBreakerState("audit", 2)
	})
}
