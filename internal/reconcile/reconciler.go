package reconcile

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// DefaultDeadZone 权重绝对值不超过该值的资产保持空仓
const DefaultDeadZone = 0.01

// Broker 下单接口, 由执行端实现
type Broker interface {
	// Submit 提交市价单
	Submit(symbol string, side types.Side, size int) (types.Order, error)
	// Close 平掉当前持仓, 空仓时 ok 为 false
	Close(symbol string) (order types.Order, ok bool, err error)
}

// Entry 建仓指令
type Entry struct {
	Symbol      string
	Side        types.Side
	Size        int
	Price       float64
	Weight      float64
	TargetValue float64
}

// Skip 因价格缺失等原因未处理的资产
type Skip struct {
	Symbol string
	Reason string
}

// Plan 一次再平衡的全部指令: 先全部平仓, 再按权重建仓
type Plan struct {
	Equity  float64
	Closes  []string
	Entries []Entry
	Skipped []Skip
}

// BuildPlan 根据目标权重、总权益和最新价格计算指令, 纯函数
func BuildPlan(assets []string, weights map[string]float64, equity float64, prices map[string]float64, deadZone float64) Plan {
	plan := Plan{
		Equity: equity,
		Closes: make([]string, len(assets)),
	}
	copy(plan.Closes, assets)

	for _, symbol := range assets {
		weight := weights[symbol]
		if math.Abs(weight) <= deadZone {
			continue
		}
		price, ok := prices[symbol]
		if !ok || !(price > 0) || math.IsInf(price, 0) {
			plan.Skipped = append(plan.Skipped, Skip{Symbol: symbol, Reason: fmt.Sprintf("invalid price %v", price)})
			continue
		}
		targetValue := equity * weight
		// 向零截断
		size := int(targetValue / price)
		switch {
		case size > 0:
			plan.Entries = append(plan.Entries, Entry{Symbol: symbol, Side: types.SideBuy, Size: size, Price: price, Weight: weight, TargetValue: targetValue})
		case size < 0:
			plan.Entries = append(plan.Entries, Entry{Symbol: symbol, Side: types.SideSell, Size: -size, Price: price, Weight: weight, TargetValue: targetValue})
		}
	}
	return plan
}

// Reconciler 执行再平衡指令
type Reconciler struct {
	broker Broker
	log    zerolog.Logger
}

// New 创建调仓执行器
func New(broker Broker, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		broker: broker,
		log:    log.With().Str("component", "reconciler").Logger(),
	}
}

// Execute 先提交全部平仓单, 再提交建仓单. 单个订单失败只记录日志, 不影响后续订单.
func (r *Reconciler) Execute(plan Plan) []types.Order {
	orders := make([]types.Order, 0, len(plan.Closes)+len(plan.Entries))

	for _, symbol := range plan.Closes {
		order, ok, err := r.broker.Close(symbol)
		if err != nil {
			r.log.Warn().Err(err).Str("symbol", symbol).Msg("close failed")
			continue
		}
		if ok {
			orders = append(orders, order)
		}
	}

	for _, s := range plan.Skipped {
		r.log.Warn().Str("symbol", s.Symbol).Str("reason", s.Reason).Msg("entry skipped")
	}

	for _, e := range plan.Entries {
		if e.Side == types.SideBuy {
			r.log.Info().Str("symbol", e.Symbol).Int("size", e.Size).Float64("price", e.Price).
				Msgf("BUY %s: %d shares, price: %.2f", e.Symbol, e.Size, e.Price)
		} else {
			r.log.Info().Str("symbol", e.Symbol).Int("size", e.Size).Float64("price", e.Price).
				Msgf("SHORT %s: %d shares, price: %.2f", e.Symbol, e.Size, e.Price)
		}
		order, err := r.broker.Submit(e.Symbol, e.Side, e.Size)
		if err != nil {
			r.log.Warn().Err(err).Str("symbol", e.Symbol).Msg("submit failed")
			continue
		}
		orders = append(orders, order)
	}
	return orders
}
