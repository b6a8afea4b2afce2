package data

import (
	"time"

	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// DataLoader 数据加载器接口
type DataLoader interface {
	// LoadPrices 加载历史价格数据
	LoadPrices(symbols []string, start, end time.Time) (map[string][]types.PriceData, error)

	// GetDataRange 获取可用数据范围
	GetDataRange(symbol string) (start, end time.Time, err error)

	// SourceType 支持的数据源类型
	SourceType() string

	// GetAllDates 获取所有交易日期
	GetAllDates() []time.Time

	// GetCommonDates 获取所有标的都有价格的交易日期
	GetCommonDates() []time.Time

	// GetPricesOnDate 获取指定日期所有标的的收盘价
	GetPricesOnDate(date time.Time) map[string]float64
}
