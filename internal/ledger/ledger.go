package ledger

import (
	"github.com/rs/zerolog"

	"github.com/opsxjacky/eigen-rebalance/internal/metrics"
	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// PositionWriter 持仓数量的唯一写入方
type PositionWriter interface {
	AddQuantity(symbol string, delta int) error
}

// Counts 各状态订单数量
type Counts map[types.OrderStatus]int

// Ledger 订单与交易台账
type Ledger struct {
	positions PositionWriter
	log       zerolog.Logger
	metrics   *metrics.Recorder

	orders   map[string]types.Order
	sequence []string
	trades   []types.Trade
	failures []types.ExecutionError
}

// New 创建台账
func New(positions PositionWriter, log zerolog.Logger, rec *metrics.Recorder) *Ledger {
	return &Ledger{
		positions: positions,
		log:       log.With().Str("component", "ledger").Logger(),
		metrics:   rec,
		orders:    make(map[string]types.Order),
	}
}

// OnOrder 处理订单状态变化通知
func (l *Ledger) OnOrder(o types.Order) {
	prev, seen := l.orders[o.ID]
	if seen && prev.Status.IsTerminal() {
		l.log.Warn().Str("order_id", o.ID).Str("status", string(prev.Status)).
			Str("update", string(o.Status)).Msg("ignoring update for terminal order")
		return
	}
	if !seen {
		l.sequence = append(l.sequence, o.ID)
	}
	l.orders[o.ID] = o
	l.metrics.Order(string(o.Status))

	switch o.Status {
	case types.OrderSubmitted, types.OrderAccepted:
		// 已提交/已接受, 无需处理
		return

	case types.OrderCompleted:
		evt := l.log.Info().
			Str("date", o.ExecutedAt.Format("2006-01-02")).
			Str("symbol", o.Symbol).
			Int("size", o.Size)
		if o.Side == types.SideBuy {
			evt.Msgf("BUY EXECUTED, Price: %.2f, Cost: %.2f, Comm %.2f", o.ExecutedPrice, o.ExecutedValue, o.Commission)
		} else {
			evt.Msgf("SELL EXECUTED, Price: %.2f, Cost: %.2f, Comm %.2f", o.ExecutedPrice, o.ExecutedValue, o.Commission)
		}
		if err := l.positions.AddQuantity(o.Symbol, o.SignedSize()); err != nil {
			l.log.Error().Err(err).Str("order_id", o.ID).Msg("failed to apply fill to holdings")
		}

	case types.OrderCanceled, types.OrderMargin, types.OrderRejected:
		execErr := types.ExecutionError{OrderID: o.ID, Symbol: o.Symbol, Status: o.Status}
		l.failures = append(l.failures, execErr)
		l.log.Warn().Err(&execErr).Str("symbol", o.Symbol).Msg("Order Canceled/Margin/Rejected")

	default:
		l.log.Warn().Str("order_id", o.ID).Str("status", string(o.Status)).Msg("unknown order status")
	}
}

// OnTrade 处理交易通知, 只记录已平仓的交易
func (l *Ledger) OnTrade(t types.Trade) {
	if !t.IsClosed {
		return
	}
	l.trades = append(l.trades, t)
	l.metrics.TradeClosed(t.PnLComm)
	l.log.Info().
		Str("date", t.ClosedAt.Format("2006-01-02")).
		Str("symbol", t.Symbol).
		Msgf("OPERATION PROFIT, GROSS %.2f, NET %.2f", t.PnL, t.PnLComm)
}

// Order 按ID查询订单最新状态
func (l *Ledger) Order(id string) (types.Order, bool) {
	o, ok := l.orders[id]
	return o, ok
}

// Orders 按首次出现顺序返回全部订单
func (l *Ledger) Orders() []types.Order {
	out := make([]types.Order, 0, len(l.sequence))
	for _, id := range l.sequence {
		out = append(out, l.orders[id])
	}
	return out
}

// Trades 已平仓交易
func (l *Ledger) Trades() []types.Trade {
	out := make([]types.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Failures 未成交订单
func (l *Ledger) Failures() []types.ExecutionError {
	out := make([]types.ExecutionError, len(l.failures))
	copy(out, l.failures)
	return out
}

// Counts 按最新状态统计订单
func (l *Ledger) Counts() Counts {
	c := make(Counts)
	for _, o := range l.orders {
		c[o.Status]++
	}
	return c
}
