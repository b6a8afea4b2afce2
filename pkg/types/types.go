package types

import (
	"fmt"
	"time"
)

// PriceData 资产价格数据
type PriceData struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	AdjClose  float64
}

// Side 交易方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回反方向
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign 买入为 +1, 卖出为 -1
func (s Side) Sign() int {
	if s == SideBuy {
		return 1
	}
	return -1
}

// OrderStatus 订单生命周期状态
type OrderStatus string

const (
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderAccepted  OrderStatus = "ACCEPTED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCanceled  OrderStatus = "CANCELED"
	OrderMargin    OrderStatus = "MARGIN"
	OrderRejected  OrderStatus = "REJECTED"
)

// IsTerminal 是否终态
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderCanceled, OrderMargin, OrderRejected:
		return true
	}
	return false
}

// Order 交易订单
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Size      int // 始终为正, 方向由 Side 决定
	Status    OrderStatus
	Close     bool // 是否为平仓单
	Submitted time.Time

	// 成交信息, 仅 Completed 时有效
	ExecutedAt    time.Time
	ExecutedPrice float64
	ExecutedValue float64
	Commission    float64
}

// SignedSize 带方向的数量
func (o Order) SignedSize() int {
	return o.Side.Sign() * o.Size
}

// ExecutionError 订单未成交 (取消/保证金不足/拒绝)
type ExecutionError struct {
	OrderID string
	Symbol  string
	Status  OrderStatus
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("order %s on %s not executed: %s", e.OrderID, e.Symbol, e.Status)
}

// Trade 交易记录 (一次完整的开仓到平仓)
type Trade struct {
	Symbol   string
	OpenedAt time.Time
	ClosedAt time.Time
	IsClosed bool
	PnL      float64 // 毛盈亏
	PnLComm  float64 // 扣除佣金后的净盈亏
	Fees     float64
}

// Fill 成交记录
type Fill struct {
	Timestamp time.Time
	OrderID   string
	Symbol    string
	Side      Side
	Quantity  int
	Price     float64
	Fee       float64
	Value     float64 // 成交金额 (不含手续费)
}

// PortfolioSnapshot 组合净值快照 (每个bar一条)
type PortfolioSnapshot struct {
	Timestamp  time.Time
	Cash       float64
	Positions  map[string]int
	TotalValue float64
}

// EquityPoint 日期与总权益
type EquityPoint struct {
	Date   time.Time
	Equity float64
}

// BacktestConfig 回测配置
type BacktestConfig struct {
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	Symbols        []string
}

// BacktestResult 回测结果
type BacktestResult struct {
	Config      BacktestConfig
	Fills       []Fill
	Trades      []Trade
	Snapshots   []PortfolioSnapshot
	Weights     map[string]float64
	Rebalances  int
	FinalValue  float64
	TotalReturn float64
	TotalTrades int
	TotalFees   float64
	StartDate   time.Time
	EndDate     time.Time
}

// CostConfig 成本配置
type CostConfig struct {
	CommissionRate float64 // 佣金率
	MinCommission  float64 // 最低佣金
	SlippageRate   float64 // 滑点率
	TaxRate        float64 // 税率
}

// StrategyConfig 策略配置
type StrategyConfig struct {
	Name            string
	Type            string
	Lookback        int     // 协方差窗口长度 (bar)
	RebalancePeriod int     // 进入活跃期后的再平衡间隔 (bar)
	TopEigen        int     // 使用的主成分数量
	WeightingScheme string  // equal / variance / first_only
	Normalization   string  // absolute / signed
	DeadZone        float64 // 低于该权重不建仓
	PrintDebug      bool
}

// DefaultStrategyConfig 默认策略参数
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Name:            "EigenPortfolio",
		Type:            "eigen",
		Lookback:        252,
		RebalancePeriod: 21,
		TopEigen:        3,
		WeightingScheme: "variance",
		Normalization:   "absolute",
		DeadZone:        0.01,
		PrintDebug:      true,
	}
}
