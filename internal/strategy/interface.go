package strategy

import (
	"time"

	"github.com/opsxjacky/eigen-rebalance/internal/reconcile"
	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// Bar 当前bar信息
type Bar struct {
	Index int // 从1开始
	Date  time.Time
}

// Strategy 由回测驱动的策略接口
type Strategy interface {
	// Name 策略名称
	Name() string

	// Next 每个bar调用一次
	Next(bar Bar)

	// NotifyOrder 订单状态变化回调
	NotifyOrder(order types.Order)

	// NotifyTrade 交易状态变化回调
	NotifyTrade(trade types.Trade)
}

// History 价格历史来源
type History interface {
	IDs() []string
	History(id string, n int) ([]float64, error)
	LastPrices() map[string]float64
}

// Account 账户: 总权益查询与下单
type Account interface {
	reconcile.Broker
	Value() float64
}
