package portfolio

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsxjacky/eigen-rebalance/internal/cost"
	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// Notifier 接收订单和交易通知
type Notifier interface {
	NotifyOrder(order types.Order)
	NotifyTrade(trade types.Trade)
}

type openTrade struct {
	openedAt  time.Time
	buyValue  float64
	sellValue float64
	fees      float64
}

// Manager 模拟券商: 现金、带符号的整数持仓、挂单队列与成交撮合
type Manager struct {
	cash      float64
	positions map[string]int
	marks     map[string]float64
	costModel cost.CostModel
	notifier  Notifier
	log       zerolog.Logger
	now       time.Time

	pending []types.Order
	fills   []types.Fill
	open    map[string]*openTrade
	trades  []types.Trade
}

// NewManager 创建投资组合管理器
func NewManager(initialCash float64, costModel cost.CostModel, log zerolog.Logger) *Manager {
	return &Manager{
		cash:      initialCash,
		positions: make(map[string]int),
		marks:     make(map[string]float64),
		costModel: costModel,
		log:       log.With().Str("component", "broker").Logger(),
		open:      make(map[string]*openTrade),
	}
}

// SetNotifier 设置通知接收方
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

func (m *Manager) notifyOrder(o types.Order) {
	if m.notifier != nil {
		m.notifier.NotifyOrder(o)
	}
}

func (m *Manager) notifyTrade(t types.Trade) {
	if m.notifier != nil {
		m.notifier.NotifyTrade(t)
	}
}

// Cash 当前现金
func (m *Manager) Cash() float64 {
	return m.cash
}

// Position 当前持仓 (带符号)
func (m *Manager) Position(symbol string) int {
	return m.positions[symbol]
}

// Positions 全部非零持仓的副本
func (m *Manager) Positions() map[string]int {
	out := make(map[string]int, len(m.positions))
	for k, v := range m.positions {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

// Value 总权益 = 现金 + 按最新价格计算的持仓市值
func (m *Manager) Value() float64 {
	total := m.cash
	for symbol, qty := range m.positions {
		total += float64(qty) * m.marks[symbol]
	}
	return total
}

// Mark 用当日价格更新持仓市值
func (m *Manager) Mark(date time.Time, prices map[string]float64) {
	m.now = date
	for symbol, p := range prices {
		m.marks[symbol] = p
	}
}

// Submit 提交市价单, 在下一次 Process 时成交
func (m *Manager) Submit(symbol string, side types.Side, size int) (types.Order, error) {
	return m.submit(symbol, side, size, false)
}

// Close 提交与当前持仓反向的平仓单
func (m *Manager) Close(symbol string) (types.Order, bool, error) {
	qty := m.positions[symbol]
	if qty == 0 {
		return types.Order{}, false, nil
	}
	side := types.SideSell
	if qty < 0 {
		side = types.SideBuy
		qty = -qty
	}
	o, err := m.submit(symbol, side, qty, true)
	if err != nil {
		return types.Order{}, false, err
	}
	return o, true, nil
}

func (m *Manager) submit(symbol string, side types.Side, size int, closing bool) (types.Order, error) {
	if side != types.SideBuy && side != types.SideSell {
		return types.Order{}, fmt.Errorf("invalid side %q", side)
	}
	o := types.Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Size:      size,
		Status:    types.OrderSubmitted,
		Close:     closing,
		Submitted: m.now,
	}
	if size <= 0 {
		o.Status = types.OrderRejected
		m.notifyOrder(o)
		return o, nil
	}
	m.pending = append(m.pending, o)
	m.notifyOrder(o)
	return o, nil
}

// Pending 未成交订单数量
func (m *Manager) Pending() int {
	return len(m.pending)
}

// Process 按提交顺序撮合全部挂单
func (m *Manager) Process(date time.Time, prices map[string]float64) {
	m.now = date
	queue := m.pending
	m.pending = nil

	for _, o := range queue {
		o.Status = types.OrderAccepted
		m.notifyOrder(o)

		price, ok := prices[o.Symbol]
		if !ok || price <= 0 {
			o.Status = types.OrderRejected
			m.log.Debug().Str("symbol", o.Symbol).Msg("no price for order")
			m.notifyOrder(o)
			continue
		}

		execPrice := m.costModel.Slippage(price, o.Side)
		value := float64(o.Size) * execPrice
		fee := m.costModel.Commission(o.Side, o.Size, execPrice)

		current := m.positions[o.Symbol]
		next := current + o.SignedSize()
		reduces := abs(next) < abs(current) && sign(next) != -sign(current)
		if !reduces && m.cash < value+fee {
			o.Status = types.OrderMargin
			m.log.Debug().Str("symbol", o.Symbol).Float64("cash", m.cash).Float64("need", value+fee).Msg("insufficient cash")
			m.notifyOrder(o)
			continue
		}

		if o.Side == types.SideBuy {
			m.cash -= value + fee
		} else {
			m.cash += value - fee
		}
		m.positions[o.Symbol] = next
		m.marks[o.Symbol] = price

		o.Status = types.OrderCompleted
		o.ExecutedAt = date
		o.ExecutedPrice = execPrice
		o.ExecutedValue = value
		o.Commission = fee

		m.fills = append(m.fills, types.Fill{
			Timestamp: date,
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Quantity:  o.Size,
			Price:     execPrice,
			Fee:       fee,
			Value:     value,
		})
		m.notifyOrder(o)
		m.updateTrade(o, current, next, execPrice, fee)
	}
}

// updateTrade 持仓离开0时开仓, 回到0时平仓; 穿越0的成交拆成平仓和开仓两部分
func (m *Manager) updateTrade(o types.Order, current, next int, price, fee float64) {
	closingQty := 0
	if current != 0 && (next == 0 || sign(next) != sign(current)) {
		closingQty = abs(current)
	}
	rest := o.Size - closingQty

	if closingQty > 0 {
		t := m.open[o.Symbol]
		if t == nil {
			t = &openTrade{openedAt: m.now}
		}
		part := fee * float64(closingQty) / float64(o.Size)
		m.addLeg(t, o.Side, closingQty, price, part)
		delete(m.open, o.Symbol)

		pnl := t.sellValue - t.buyValue
		closed := types.Trade{
			Symbol:   o.Symbol,
			OpenedAt: t.openedAt,
			ClosedAt: m.now,
			IsClosed: true,
			PnL:      pnl,
			PnLComm:  pnl - t.fees,
			Fees:     t.fees,
		}
		m.trades = append(m.trades, closed)
		m.notifyTrade(closed)
		fee -= part
	}

	if rest > 0 && next != 0 {
		t, ok := m.open[o.Symbol]
		if !ok {
			t = &openTrade{openedAt: m.now}
			m.open[o.Symbol] = t
			m.addLeg(t, o.Side, rest, price, fee)
			m.notifyTrade(types.Trade{Symbol: o.Symbol, OpenedAt: m.now})
			return
		}
		m.addLeg(t, o.Side, rest, price, fee)
	}
}

func (m *Manager) addLeg(t *openTrade, side types.Side, qty int, price, fee float64) {
	v := float64(qty) * price
	if side == types.SideBuy {
		t.buyValue += v
	} else {
		t.sellValue += v
	}
	t.fees += fee
}

// CancelPending 取消全部挂单 (回测结束时调用)
func (m *Manager) CancelPending() {
	queue := m.pending
	m.pending = nil
	for _, o := range queue {
		o.Status = types.OrderCanceled
		m.notifyOrder(o)
	}
}

// Fills 全部成交记录
func (m *Manager) Fills() []types.Fill {
	return m.fills
}

// Trades 全部已平仓交易
func (m *Manager) Trades() []types.Trade {
	return m.trades
}

// TakeSnapshot 创建快照
func (m *Manager) TakeSnapshot() types.PortfolioSnapshot {
	return types.PortfolioSnapshot{
		Timestamp:  m.now,
		Cash:       m.cash,
		Positions:  m.Positions(),
		TotalValue: m.Value(),
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
