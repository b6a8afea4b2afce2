package ledger

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

type holdings map[string]int

func (h holdings) AddQuantity(symbol string, delta int) error {
	h[symbol] += delta
	return nil
}

func order(id, symbol string, side types.Side, size int, status types.OrderStatus) types.Order {
	return types.Order{ID: id, Symbol: symbol, Side: side, Size: size, Status: status}
}

func TestCompletedUpdatesHoldings(t *testing.T) {
	h := holdings{}
	var buf bytes.Buffer
	l := New(h, zerolog.New(&buf), nil)

	l.OnOrder(order("1", "A", types.SideBuy, 100, types.OrderSubmitted))
	l.OnOrder(order("1", "A", types.SideBuy, 100, types.OrderAccepted))
	assert.Equal(t, 0, h["A"], "only completed orders touch holdings")

	done := order("1", "A", types.SideBuy, 100, types.OrderCompleted)
	done.ExecutedAt = time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)
	done.ExecutedPrice = 50
	done.ExecutedValue = 5000
	done.Commission = 5
	l.OnOrder(done)
	assert.Equal(t, 100, h["A"])
	assert.Contains(t, buf.String(), "BUY EXECUTED, Price: 50.00, Cost: 5000.00, Comm 5.00")

	l.OnOrder(order("2", "A", types.SideSell, 40, types.OrderCompleted))
	assert.Equal(t, 60, h["A"])
	assert.Contains(t, buf.String(), "SELL EXECUTED")

	got, ok := l.Order("1")
	require.True(t, ok)
	assert.Equal(t, 50.0, got.ExecutedPrice)
	assert.Len(t, l.Orders(), 2)
}

func TestFailedOrdersAreInert(t *testing.T) {
	h := holdings{}
	var buf bytes.Buffer
	l := New(h, zerolog.New(&buf), nil)

	for i, status := range []types.OrderStatus{types.OrderCanceled, types.OrderMargin, types.OrderRejected} {
		l.OnOrder(order(string(rune('a'+i)), "A", types.SideBuy, 10, status))
	}
	assert.Equal(t, 0, h["A"])
	assert.Len(t, l.Failures(), 3)
	assert.Equal(t, types.OrderMargin, l.Failures()[1].Status)
	assert.Contains(t, buf.String(), "Order Canceled/Margin/Rejected")

	c := l.Counts()
	assert.Equal(t, 1, c[types.OrderCanceled])
	assert.Equal(t, 1, c[types.OrderMargin])
	assert.Equal(t, 1, c[types.OrderRejected])
}

func TestTerminalOrdersAreImmutable(t *testing.T) {
	h := holdings{}
	l := New(h, zerolog.Nop(), nil)

	l.OnOrder(order("1", "A", types.SideBuy, 10, types.OrderCompleted))
	l.OnOrder(order("1", "A", types.SideBuy, 10, types.OrderCompleted))
	l.OnOrder(order("1", "A", types.SideBuy, 10, types.OrderCanceled))

	assert.Equal(t, 10, h["A"], "duplicate completion must not double count")
	got, _ := l.Order("1")
	assert.Equal(t, types.OrderCompleted, got.Status)
	assert.Empty(t, l.Failures())
}

func TestOnTradeRecordsClosedOnly(t *testing.T) {
	var buf bytes.Buffer
	l := New(holdings{}, zerolog.New(&buf), nil)

	l.OnTrade(types.Trade{Symbol: "A", PnL: 10})
	assert.Empty(t, l.Trades())

	l.OnTrade(types.Trade{Symbol: "A", IsClosed: true, PnL: 120.5, PnLComm: 110.25})
	require.Len(t, l.Trades(), 1)
	assert.Contains(t, buf.String(), "OPERATION PROFIT, GROSS 120.50, NET 110.25")
}
