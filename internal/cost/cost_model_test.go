package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

func TestCommission(t *testing.T) {
	m := NewDefaultCostModel(types.CostConfig{CommissionRate: 0.001, MinCommission: 1, TaxRate: 0.002})

	assert.InDelta(t, 20.0, m.Commission(types.SideBuy, 400, 50), 1e-9)
	assert.InDelta(t, 60.0, m.Commission(types.SideSell, 400, 50), 1e-9)
	assert.InDelta(t, 1.0, m.Commission(types.SideBuy, 1, 10), 1e-9, "minimum commission")
	assert.Equal(t, 0.0, m.Commission(types.SideBuy, 0, 10))
}

func TestSlippage(t *testing.T) {
	m := NewDefaultCostModel(types.CostConfig{SlippageRate: 0.01})
	assert.InDelta(t, 101.0, m.Slippage(100, types.SideBuy), 1e-9)
	assert.InDelta(t, 99.0, m.Slippage(100, types.SideSell), 1e-9)

	zero := NewZeroCostModel()
	assert.Equal(t, 100.0, zero.Slippage(100, types.SideBuy))
	assert.Equal(t, 0.0, zero.Commission(types.SideSell, 10, 100))
}
