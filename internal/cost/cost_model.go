package cost

import (
	"math"

	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// CostModel 成本模型接口
type CostModel interface {
	// Commission 计算一笔成交的费用 (佣金+税)
	Commission(side types.Side, quantity int, price float64) float64

	// Slippage 计算滑点调整后的成交价
	Slippage(price float64, side types.Side) float64
}

// DefaultCostModel 默认成本模型
type DefaultCostModel struct {
	CommissionRate float64 // 佣金率
	MinCommission  float64 // 最低佣金
	SlippageRate   float64 // 滑点率
	TaxRate        float64 // 税率 (卖出时收取)
}

// NewDefaultCostModel 创建默认成本模型
func NewDefaultCostModel(config types.CostConfig) *DefaultCostModel {
	return &DefaultCostModel{
		CommissionRate: config.CommissionRate,
		MinCommission:  config.MinCommission,
		SlippageRate:   config.SlippageRate,
		TaxRate:        config.TaxRate,
	}
}

// NewZeroCostModel 创建零成本模型 (用于测试)
func NewZeroCostModel() *DefaultCostModel {
	return &DefaultCostModel{}
}

// Commission 计算交易成本
func (m *DefaultCostModel) Commission(side types.Side, quantity int, price float64) float64 {
	tradeValue := math.Abs(float64(quantity) * price)

	commission := tradeValue * m.CommissionRate
	if commission < m.MinCommission && tradeValue > 0 {
		commission = m.MinCommission
	}

	// 税费 (仅卖出时收取)
	var tax float64
	if side == types.SideSell {
		tax = tradeValue * m.TaxRate
	}

	return commission + tax
}

// Slippage 计算滑点调整后的价格
func (m *DefaultCostModel) Slippage(price float64, side types.Side) float64 {
	if side == types.SideBuy {
		// 买入时价格上浮
		return price * (1 + m.SlippageRate)
	}
	// 卖出时价格下浮
	return price * (1 - m.SlippageRate)
}
