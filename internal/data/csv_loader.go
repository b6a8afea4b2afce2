package data

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// CSVLoader CSV数据加载器, 每个标的一个 <symbol>.csv 文件
type CSVLoader struct {
	dataDir     string
	priceData   map[string][]types.PriceData
	allDates    []time.Time
	commonDates []time.Time
}

// NewCSVLoader 创建CSV加载器
func NewCSVLoader(dataDir string) *CSVLoader {
	return &CSVLoader{
		dataDir:   dataDir,
		priceData: make(map[string][]types.PriceData),
	}
}

// SourceType 返回数据源类型
func (l *CSVLoader) SourceType() string {
	return "csv"
}

// LoadPrices 加载价格数据
func (l *CSVLoader) LoadPrices(symbols []string, start, end time.Time) (map[string][]types.PriceData, error) {
	result := make(map[string][]types.PriceData)
	dateCount := make(map[time.Time]int)

	for _, symbol := range symbols {
		priceData, err := l.loadSymbolData(symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to load data for %s: %w", symbol, err)
		}
		result[symbol] = priceData
		l.priceData[symbol] = priceData

		// 收集所有日期
		for _, d := range priceData {
			dateCount[d.Timestamp]++
		}
	}

	// 整理所有日期
	l.allDates = make([]time.Time, 0, len(dateCount))
	l.commonDates = make([]time.Time, 0, len(dateCount))
	for d, n := range dateCount {
		l.allDates = append(l.allDates, d)
		if n == len(symbols) {
			l.commonDates = append(l.commonDates, d)
		}
	}
	sortDates(l.allDates)
	sortDates(l.commonDates)

	return result, nil
}

func sortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
}

// loadSymbolData 加载单个标的数据
func (l *CSVLoader) loadSymbolData(symbol string, start, end time.Time) ([]types.PriceData, error) {
	filePath := filepath.Join(l.dataDir, symbol+".csv")
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file has no data rows")
	}

	// 解析表头，找到各列的索引
	colIndex := parseHeader(records[0])
	if _, ok := colIndex["date"]; !ok {
		return nil, fmt.Errorf("CSV file has no date column")
	}
	if _, ok := colIndex["close"]; !ok {
		if _, ok := colIndex["adj_close"]; !ok {
			return nil, fmt.Errorf("CSV file has no close column")
		}
	}

	var result []types.PriceData
	seen := make(map[time.Time]bool)
	for i := 1; i < len(records); i++ {
		priceData, err := parseRow(records[i], colIndex, symbol)
		if err != nil {
			continue // 跳过解析错误的行
		}
		if seen[priceData.Timestamp] {
			continue
		}

		// 过滤日期范围
		if !start.IsZero() && priceData.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && priceData.Timestamp.After(end) {
			continue
		}
		seen[priceData.Timestamp] = true
		result = append(result, priceData)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// parseHeader 解析CSV表头
func parseHeader(header []string) map[string]int {
	colIndex := make(map[string]int)
	for i, col := range header {
		switch col {
		case "Date", "date", "DATE", "Timestamp", "timestamp":
			colIndex["date"] = i
		case "Open", "open", "OPEN":
			colIndex["open"] = i
		case "High", "high", "HIGH":
			colIndex["high"] = i
		case "Low", "low", "LOW":
			colIndex["low"] = i
		case "Close", "close", "CLOSE":
			colIndex["close"] = i
		case "Volume", "volume", "VOLUME":
			colIndex["volume"] = i
		case "Adj Close", "adj_close", "AdjClose", "Adj_Close":
			colIndex["adj_close"] = i
		}
	}
	return colIndex
}

// parseRow 解析CSV行, 收盘价缺失或非正数的行返回错误
func parseRow(row []string, colIndex map[string]int, symbol string) (types.PriceData, error) {
	var priceData types.PriceData
	priceData.Symbol = symbol

	idx := colIndex["date"]
	if idx >= len(row) {
		return priceData, fmt.Errorf("row has no date")
	}
	t, err := parseDate(row[idx])
	if err != nil {
		return priceData, err
	}
	priceData.Timestamp = t

	field := func(name string) float64 {
		if idx, ok := colIndex[name]; ok && idx < len(row) {
			v, _ := strconv.ParseFloat(row[idx], 64)
			return v
		}
		return 0
	}
	priceData.Open = field("open")
	priceData.High = field("high")
	priceData.Low = field("low")
	priceData.Close = field("close")
	priceData.Volume = field("volume")
	if _, ok := colIndex["adj_close"]; ok {
		priceData.AdjClose = field("adj_close")
	} else {
		priceData.AdjClose = priceData.Close // 默认使用收盘价
	}
	if priceData.Close == 0 {
		priceData.Close = priceData.AdjClose
	}

	if !(priceData.AdjClose > 0) || math.IsInf(priceData.AdjClose, 0) {
		return priceData, fmt.Errorf("invalid close %v on %s", priceData.AdjClose, row[idx])
	}
	return priceData, nil
}

// parseDate 解析日期字符串
func parseDate(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// GetDataRange 获取数据范围
func (l *CSVLoader) GetDataRange(symbol string) (start, end time.Time, err error) {
	data, ok := l.priceData[symbol]
	if !ok || len(data) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("no data for symbol %s", symbol)
	}
	return data[0].Timestamp, data[len(data)-1].Timestamp, nil
}

// GetAllDates 获取所有交易日期
func (l *CSVLoader) GetAllDates() []time.Time {
	return l.allDates
}

// GetCommonDates 获取所有标的都有价格的交易日期
func (l *CSVLoader) GetCommonDates() []time.Time {
	return l.commonDates
}

// GetPriceOnDate 获取指定日期的价格
func (l *CSVLoader) GetPriceOnDate(symbol string, date time.Time) (types.PriceData, bool) {
	data, ok := l.priceData[symbol]
	if !ok {
		return types.PriceData{}, false
	}

	// 二分查找
	dateOnly := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	idx := sort.Search(len(data), func(i int) bool {
		d := data[i].Timestamp
		dOnly := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		return !dOnly.Before(dateOnly)
	})

	if idx < len(data) {
		d := data[idx].Timestamp
		dOnly := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if dOnly.Equal(dateOnly) {
			return data[idx], true
		}
	}

	return types.PriceData{}, false
}

// GetPricesOnDate 获取指定日期所有标的的价格
func (l *CSVLoader) GetPricesOnDate(date time.Time) map[string]float64 {
	prices := make(map[string]float64)
	for symbol := range l.priceData {
		if data, ok := l.GetPriceOnDate(symbol, date); ok {
			prices[symbol] = data.AdjClose
		}
	}
	return prices
}
