package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsxjacky/eigen-rebalance/internal/cost"
	"github.com/opsxjacky/eigen-rebalance/internal/data"
	"github.com/opsxjacky/eigen-rebalance/internal/metrics"
	"github.com/opsxjacky/eigen-rebalance/internal/portfolio"
	"github.com/opsxjacky/eigen-rebalance/internal/strategy"
	"github.com/opsxjacky/eigen-rebalance/internal/universe"
	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// BacktestEngine 按bar推进的回测引擎
type BacktestEngine struct {
	config         types.BacktestConfig
	strategyConfig types.StrategyConfig
	dataLoader     data.DataLoader
	costModel      cost.CostModel
	metrics        *metrics.Recorder
	log            zerolog.Logger

	broker    *portfolio.Manager
	strategy  *strategy.EigenPortfolio
	snapshots []types.PortfolioSnapshot
	result    *types.BacktestResult
}

// New 创建回测引擎
func New(config types.BacktestConfig, strategyConfig types.StrategyConfig, log zerolog.Logger) *BacktestEngine {
	return &BacktestEngine{
		config:         config,
		strategyConfig: strategyConfig,
		log:            log.With().Str("component", "engine").Logger(),
		snapshots:      make([]types.PortfolioSnapshot, 0),
	}
}

// SetDataLoader 设置数据加载器
func (e *BacktestEngine) SetDataLoader(loader data.DataLoader) {
	e.dataLoader = loader
}

// SetCostModel 设置成本模型
func (e *BacktestEngine) SetCostModel(model cost.CostModel) {
	e.costModel = model
}

// SetMetrics 设置指标记录器
func (e *BacktestEngine) SetMetrics(rec *metrics.Recorder) {
	e.metrics = rec
}

// Run 运行回测
func (e *BacktestEngine) Run(ctx context.Context) (*types.BacktestResult, error) {
	// 验证配置
	if err := e.validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// 加载数据
	e.log.Info().Strs("symbols", e.config.Symbols).Msg("loading data")
	_, err := e.dataLoader.LoadPrices(e.config.Symbols, e.config.StartDate, e.config.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	// 只使用所有标的都有价格的交易日, 保证每个bar每个资产追加一个价格
	dates := e.dataLoader.GetCommonDates()
	if len(dates) == 0 {
		return nil, fmt.Errorf("no trading dates found")
	}
	if skipped := len(e.dataLoader.GetAllDates()) - len(dates); skipped > 0 {
		e.log.Warn().Int("dates", skipped).Msg("skipping dates where not every asset has a price")
	}

	u, err := universe.New(e.config.Symbols)
	if err != nil {
		return nil, err
	}
	e.broker = portfolio.NewManager(e.config.InitialCapital, e.costModel, e.log)
	e.strategy, err = strategy.NewEigenPortfolio(e.strategyConfig, u, e.broker, e.log, e.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy: %w", err)
	}
	e.broker.SetNotifier(e.strategy)

	e.log.Info().
		Str("from", dates[0].Format("2006-01-02")).
		Str("to", dates[len(dates)-1].Format("2006-01-02")).
		Int("bars", len(dates)).
		Msg("running backtest")

	if len(dates) <= e.strategyConfig.Lookback {
		e.log.Warn().Int("bars", len(dates)).Int("lookback", e.strategyConfig.Lookback).
			Msg("not enough bars to leave warm-up, no rebalance will happen")
	}

	// 按日期遍历
	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prices := e.dataLoader.GetPricesOnDate(date)

		// 上一个bar提交的订单按当日价格成交
		e.broker.Process(date, prices)

		if err := u.AppendBar(prices); err != nil {
			return nil, fmt.Errorf("append bar %s: %w", date.Format("2006-01-02"), err)
		}
		e.broker.Mark(date, prices)

		e.strategy.Next(strategy.Bar{Index: i + 1, Date: date})

		snapshot := e.broker.TakeSnapshot()
		e.snapshots = append(e.snapshots, snapshot)

		// 打印进度
		if (i+1)%100 == 0 || i == len(dates)-1 {
			e.log.Info().Int("bar", i+1).Int("bars", len(dates)).
				Float64("value", snapshot.TotalValue).Msg("progress")
		}
	}

	// 回测结束时仍未成交的订单全部取消
	e.broker.CancelPending()

	e.result = e.generateResult()
	return e.result, nil
}

// validate 验证配置
func (e *BacktestEngine) validate() error {
	if e.dataLoader == nil {
		return fmt.Errorf("data loader not set")
	}
	if e.costModel == nil {
		return fmt.Errorf("cost model not set")
	}
	if len(e.config.Symbols) == 0 {
		return fmt.Errorf("no symbols specified")
	}
	if e.config.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	return nil
}

// generateResult 生成回测结果
func (e *BacktestEngine) generateResult() *types.BacktestResult {
	fills := e.broker.Fills()
	finalValue := e.broker.Value()

	var totalFees float64
	for _, f := range fills {
		totalFees += f.Fee
	}

	rebalances := 0
	for _, r := range e.strategy.Rebalances() {
		if !r.Skipped {
			rebalances++
		}
	}

	result := &types.BacktestResult{
		Config:      e.config,
		Fills:       fills,
		Trades:      e.strategy.Ledger().Trades(),
		Snapshots:   e.snapshots,
		Weights:     e.strategy.Weights(),
		Rebalances:  rebalances,
		FinalValue:  finalValue,
		TotalReturn: (finalValue - e.config.InitialCapital) / e.config.InitialCapital,
		TotalTrades: len(fills),
		TotalFees:   totalFees,
	}

	if len(e.snapshots) > 0 {
		result.StartDate = e.snapshots[0].Timestamp
		result.EndDate = e.snapshots[len(e.snapshots)-1].Timestamp
	}

	return result
}

// GetResult 获取回测结果
func (e *BacktestEngine) GetResult() *types.BacktestResult {
	return e.result
}

// Strategy 返回本次运行的策略实例
func (e *BacktestEngine) Strategy() *strategy.EigenPortfolio {
	return e.strategy
}

// ExportResults 导出结果到JSON文件
func (e *BacktestEngine) ExportResults(filepath string) error {
	if e.result == nil {
		return fmt.Errorf("no results to export, run backtest first")
	}

	output := struct {
		Summary    ResultSummary             `json:"summary"`
		Weights    map[string]float64        `json:"weights"`
		Rebalances []strategy.Rebalance      `json:"rebalances"`
		Fills      []types.Fill              `json:"fills"`
		Trades     []types.Trade             `json:"trades"`
		Equity     []types.EquityPoint       `json:"equity"`
		Snapshots  []types.PortfolioSnapshot `json:"snapshots"`
		Config     types.BacktestConfig      `json:"config"`
	}{
		Summary:    e.getSummary(),
		Weights:    e.result.Weights,
		Rebalances: e.strategy.Rebalances(),
		Fills:      e.result.Fills,
		Trades:     e.result.Trades,
		Equity:     e.strategy.PortfolioState(),
		Snapshots:  e.result.Snapshots,
		Config:     e.result.Config,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	e.log.Info().Str("path", filepath).Msg("results exported")
	return nil
}

// ResultSummary 结果摘要
type ResultSummary struct {
	StrategyName   string    `json:"strategy_name"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalValue     float64   `json:"final_value"`
	TotalReturn    float64   `json:"total_return"`
	TotalTrades    int       `json:"total_trades"`
	ClosedTrades   int       `json:"closed_trades"`
	Rebalances     int       `json:"rebalances"`
	TotalFees      float64   `json:"total_fees"`
}

// getSummary 获取结果摘要
func (e *BacktestEngine) getSummary() ResultSummary {
	return ResultSummary{
		StrategyName:   e.strategy.Name(),
		StartDate:      e.result.StartDate,
		EndDate:        e.result.EndDate,
		InitialCapital: e.config.InitialCapital,
		FinalValue:     e.result.FinalValue,
		TotalReturn:    e.result.TotalReturn,
		TotalTrades:    e.result.TotalTrades,
		ClosedTrades:   len(e.result.Trades),
		Rebalances:     e.result.Rebalances,
		TotalFees:      e.result.TotalFees,
	}
}

// PrintSummary 打印回测摘要
func (e *BacktestEngine) PrintSummary() {
	if e.result == nil {
		fmt.Println("No results available")
		return
	}

	fmt.Println("\n========== Backtest Summary ==========")
	fmt.Printf("Strategy: %s\n", e.strategy.Name())
	fmt.Printf("Period: %s to %s\n",
		e.result.StartDate.Format("2006-01-02"),
		e.result.EndDate.Format("2006-01-02"))
	fmt.Printf("Initial Capital: $%.2f\n", e.config.InitialCapital)
	fmt.Printf("Final Value: $%.2f\n", e.result.FinalValue)
	fmt.Printf("Total Return: %.2f%%\n", e.result.TotalReturn*100)
	fmt.Printf("Rebalances: %d\n", e.result.Rebalances)
	fmt.Printf("Total Fills: %d\n", e.result.TotalTrades)
	fmt.Printf("Closed Trades: %d\n", len(e.result.Trades))
	fmt.Printf("Total Fees: $%.2f\n", e.result.TotalFees)
	fmt.Println("========================================")
}
