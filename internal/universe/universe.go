package universe

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrInsufficientHistory = errors.New("insufficient price history")
)

// Asset 单个可交易标的: 收盘价序列 (只追加) 与当前持仓数量
type Asset struct {
	ID       string
	closes   []float64
	quantity int
}

// Universe 资产池, 资产顺序即收益率矩阵的列顺序
type Universe struct {
	order   []string
	assets  map[string]*Asset
	weights map[string]float64
}

// New 根据资产列表创建资产池
func New(ids []string) (*Universe, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("universe needs at least one asset")
	}
	u := &Universe{
		order:   make([]string, 0, len(ids)),
		assets:  make(map[string]*Asset, len(ids)),
		weights: make(map[string]float64, len(ids)),
	}
	for _, id := range ids {
		if _, dup := u.assets[id]; dup {
			return nil, fmt.Errorf("duplicate asset %q", id)
		}
		u.order = append(u.order, id)
		u.assets[id] = &Asset{ID: id}
		u.weights[id] = 0
	}
	return u, nil
}

// IDs 返回资产顺序的副本
func (u *Universe) IDs() []string {
	out := make([]string, len(u.order))
	copy(out, u.order)
	return out
}

// Size 资产数量
func (u *Universe) Size() int {
	return len(u.order)
}

func (u *Universe) asset(id string) (*Asset, error) {
	a, ok := u.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return a, nil
}

// Append 追加一个收盘价
func (u *Universe) Append(id string, close float64) error {
	a, err := u.asset(id)
	if err != nil {
		return err
	}
	a.closes = append(a.closes, close)
	return nil
}

// AppendBar 为所有资产追加同一个bar的收盘价, 缺任何一个则全部不追加
func (u *Universe) AppendBar(closes map[string]float64) error {
	for _, id := range u.order {
		if _, ok := closes[id]; !ok {
			return fmt.Errorf("missing close for %s", id)
		}
	}
	for _, id := range u.order {
		a := u.assets[id]
		a.closes = append(a.closes, closes[id])
	}
	return nil
}

// Len 已有的价格数量
func (u *Universe) Len(id string) int {
	a, ok := u.assets[id]
	if !ok {
		return 0
	}
	return len(a.closes)
}

// History 返回最近 n 个收盘价, 按时间从旧到新
func (u *Universe) History(id string, n int) ([]float64, error) {
	a, err := u.asset(id)
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > len(a.closes) {
		return nil, fmt.Errorf("%w: %s has %d bars, requested %d", ErrInsufficientHistory, id, len(a.closes), n)
	}
	out := make([]float64, n)
	copy(out, a.closes[len(a.closes)-n:])
	return out, nil
}

// LastPrice 最新收盘价
func (u *Universe) LastPrice(id string) (float64, error) {
	a, err := u.asset(id)
	if err != nil {
		return 0, err
	}
	if len(a.closes) == 0 {
		return 0, fmt.Errorf("%w: %s has no bars", ErrInsufficientHistory, id)
	}
	return a.closes[len(a.closes)-1], nil
}

// LastPrices 所有资产的最新收盘价, 没有价格的资产不出现在结果里
func (u *Universe) LastPrices() map[string]float64 {
	prices := make(map[string]float64, len(u.order))
	for _, id := range u.order {
		if p, err := u.LastPrice(id); err == nil {
			prices[id] = p
		}
	}
	return prices
}

// Quantity 当前持仓数量 (带符号)
func (u *Universe) Quantity(id string) int {
	a, ok := u.assets[id]
	if !ok {
		return 0
	}
	return a.quantity
}

// AddQuantity 调整持仓数量, 只由成交回报调用
func (u *Universe) AddQuantity(id string, delta int) error {
	a, err := u.asset(id)
	if err != nil {
		return err
	}
	a.quantity += delta
	return nil
}

// Weights 返回当前组合权重的副本
func (u *Universe) Weights() map[string]float64 {
	out := make(map[string]float64, len(u.weights))
	for k, v := range u.weights {
		out[k] = v
	}
	return out
}

// SetWeights 按资产顺序整体替换权重
func (u *Universe) SetWeights(w []float64) error {
	if len(w) != len(u.order) {
		return fmt.Errorf("weights length %d does not match %d assets", len(w), len(u.order))
	}
	for i, id := range u.order {
		u.weights[id] = w[i]
	}
	return nil
}
