package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsxjacky/eigen-rebalance/internal/cost"
	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

type recorder struct {
	orders []types.Order
	trades []types.Trade
}

func (r *recorder) NotifyOrder(o types.Order) { r.orders = append(r.orders, o) }
func (r *recorder) NotifyTrade(t types.Trade) { r.trades = append(r.trades, t) }

func (r *recorder) statuses() []types.OrderStatus {
	out := make([]types.OrderStatus, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o.Status)
	}
	return out
}

func (r *recorder) closedTrades() []types.Trade {
	var out []types.Trade
	for _, t := range r.trades {
		if t.IsClosed {
			out = append(out, t)
		}
	}
	return out
}

var (
	day1 = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
	day3 = day1.AddDate(0, 0, 2)
)

func TestBuyFillsOnNextProcess(t *testing.T) {
	rec := &recorder{}
	m := NewManager(10000, cost.NewZeroCostModel(), zerolog.Nop())
	m.SetNotifier(rec)
	m.Mark(day1, map[string]float64{"A": 50})

	o, err := m.Submit("A", types.SideBuy, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, types.OrderSubmitted, o.Status)
	assert.Equal(t, 0, m.Position("A"))
	assert.Equal(t, 1, m.Pending())

	m.Process(day2, map[string]float64{"A": 52})
	assert.Equal(t, []types.OrderStatus{types.OrderSubmitted, types.OrderAccepted, types.OrderCompleted}, rec.statuses())
	assert.Equal(t, 100, m.Position("A"))
	assert.InDelta(t, 10000-5200, m.Cash(), 1e-9)

	m.Mark(day2, map[string]float64{"A": 55})
	assert.InDelta(t, 4800+5500, m.Value(), 1e-9)

	done := rec.orders[2]
	assert.Equal(t, day2, done.ExecutedAt)
	assert.Equal(t, 52.0, done.ExecutedPrice)
	assert.Len(t, m.Fills(), 1)
}

func TestMarginRejection(t *testing.T) {
	rec := &recorder{}
	m := NewManager(1000, cost.NewZeroCostModel(), zerolog.Nop())
	m.SetNotifier(rec)

	_, err := m.Submit("A", types.SideBuy, 100)
	require.NoError(t, err)
	_, err = m.Submit("B", types.SideBuy, 1)
	require.NoError(t, err)
	m.Process(day1, map[string]float64{"A": 50, "B": 10})

	assert.Equal(t, 0, m.Position("A"))
	assert.Equal(t, 1, m.Position("B"), "a margin rejection does not block later orders")
	assert.Contains(t, rec.statuses(), types.OrderMargin)
	assert.InDelta(t, 990, m.Cash(), 1e-9)
}

func TestCloseFlattensAndReportsTrade(t *testing.T) {
	rec := &recorder{}
	m := NewManager(10000, cost.NewDefaultCostModel(types.CostConfig{CommissionRate: 0.001}), zerolog.Nop())
	m.SetNotifier(rec)

	_, ok, err := m.Close("A")
	require.NoError(t, err)
	assert.False(t, ok, "nothing to close while flat")

	_, err = m.Submit("A", types.SideBuy, 10)
	require.NoError(t, err)
	m.Process(day1, map[string]float64{"A": 100})

	o, ok, err := m.Close("A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, o.Close)
	assert.Equal(t, types.SideSell, o.Side)
	assert.Equal(t, 10, o.Size)

	m.Process(day2, map[string]float64{"A": 110})
	assert.Equal(t, 0, m.Position("A"))

	closed := rec.closedTrades()
	require.Len(t, closed, 1)
	assert.InDelta(t, 100.0, closed[0].PnL, 1e-9)
	assert.InDelta(t, 100.0-1.0-1.1, closed[0].PnLComm, 1e-9)
	assert.Equal(t, day1, closed[0].OpenedAt)
	assert.Equal(t, day2, closed[0].ClosedAt)
}

func TestShortAndCover(t *testing.T) {
	rec := &recorder{}
	m := NewManager(10000, cost.NewZeroCostModel(), zerolog.Nop())
	m.SetNotifier(rec)

	_, err := m.Submit("A", types.SideSell, 20)
	require.NoError(t, err)
	m.Process(day1, map[string]float64{"A": 50})
	assert.Equal(t, -20, m.Position("A"))
	assert.InDelta(t, 11000, m.Cash(), 1e-9)

	m.Mark(day1, map[string]float64{"A": 50})
	assert.InDelta(t, 10000, m.Value(), 1e-9)

	o, ok, err := m.Close("A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.SideBuy, o.Side)

	m.Process(day2, map[string]float64{"A": 40})
	assert.Equal(t, 0, m.Position("A"))
	closed := rec.closedTrades()
	require.Len(t, closed, 1)
	assert.InDelta(t, 200.0, closed[0].PnL, 1e-9)
}

func TestCrossingZeroSplitsTrade(t *testing.T) {
	rec := &recorder{}
	m := NewManager(10000, cost.NewZeroCostModel(), zerolog.Nop())
	m.SetNotifier(rec)

	_, _ = m.Submit("A", types.SideBuy, 10)
	m.Process(day1, map[string]float64{"A": 10})
	_, _ = m.Submit("A", types.SideSell, 15)
	m.Process(day2, map[string]float64{"A": 12})
	assert.Equal(t, -5, m.Position("A"))

	closed := rec.closedTrades()
	require.Len(t, closed, 1)
	assert.InDelta(t, 20.0, closed[0].PnL, 1e-9)

	_, _, _ = m.Close("A")
	m.Process(day3, map[string]float64{"A": 11})
	closed = rec.closedTrades()
	require.Len(t, closed, 2)
	assert.InDelta(t, 5.0, closed[1].PnL, 1e-9)
}

func TestRejectAndCancel(t *testing.T) {
	rec := &recorder{}
	m := NewManager(10000, cost.NewZeroCostModel(), zerolog.Nop())
	m.SetNotifier(rec)

	o, err := m.Submit("A", types.SideBuy, 0)
	require.NoError(t, err)
	assert.Equal(t, types.OrderRejected, o.Status)
	assert.Equal(t, 0, m.Pending())

	_, _ = m.Submit("B", types.SideBuy, 1)
	m.Process(day1, map[string]float64{})
	assert.Equal(t, types.OrderRejected, rec.orders[len(rec.orders)-1].Status)

	_, _ = m.Submit("C", types.SideBuy, 1)
	m.CancelPending()
	assert.Equal(t, types.OrderCanceled, rec.orders[len(rec.orders)-1].Status)
	assert.Equal(t, 0, m.Pending())

	_, err = m.Submit("C", types.Side("HOLD"), 1)
	assert.Error(t, err)
}
