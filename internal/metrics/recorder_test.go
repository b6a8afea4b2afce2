package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.RebalanceOK([]string{"A", "B"}, []float64{0.4, 0.6}, []float64{0.7, 0.2})
	r.RebalanceSkipped()
	r.RebalanceSkipped()
	r.Order("COMPLETED")
	r.Order("MARGIN")
	r.TradeClosed(12.5)
	r.SetEquity(101000)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Rebalances.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Rebalances.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Orders.WithLabelValues("MARGIN")))
	assert.Equal(t, 0.6, testutil.ToFloat64(r.Weights.WithLabelValues("B")))
	assert.Equal(t, 0.7, testutil.ToFloat64(r.ExplainedVar.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TradesClosed))
	assert.Equal(t, 101000.0, testutil.ToFloat64(r.Equity))

	_, err = NewRecorder(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RebalanceOK([]string{"A"}, []float64{1}, []float64{1})
		r.RebalanceSkipped()
		r.Order("COMPLETED")
		r.TradeClosed(1)
		r.SetEquity(1)
	})
}
