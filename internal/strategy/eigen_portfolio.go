package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsxjacky/eigen-rebalance/internal/eigen"
	"github.com/opsxjacky/eigen-rebalance/internal/ledger"
	"github.com/opsxjacky/eigen-rebalance/internal/metrics"
	"github.com/opsxjacky/eigen-rebalance/internal/reconcile"
	"github.com/opsxjacky/eigen-rebalance/internal/schedule"
	"github.com/opsxjacky/eigen-rebalance/internal/universe"
	"github.com/opsxjacky/eigen-rebalance/internal/weighting"
	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// Rebalance 一次再平衡的记录
type Rebalance struct {
	Bar     int                `json:"bar"`
	Date    time.Time          `json:"date"`
	Skipped bool               `json:"skipped"`
	Err     string             `json:"error,omitempty"`
	Weights map[string]float64 `json:"weights,omitempty"`
	Ratios  []float64          `json:"ratios,omitempty"`
	Orders  int                `json:"orders"`
}

// EigenPortfolio 特征投资组合策略.
// 定期对收益率协方差矩阵做主成分分解, 按选定方案合成权重, 然后先平仓再按权重建仓.
type EigenPortfolio struct {
	cfg        types.StrategyConfig
	scheme     weighting.Scheme
	norm       weighting.Normalization
	universe   *universe.Universe
	history    History
	account    Account
	scheduler  *schedule.Scheduler
	ledger     *ledger.Ledger
	reconciler *reconcile.Reconciler
	metrics    *metrics.Recorder
	log        zerolog.Logger

	state      []types.EquityPoint
	rebalances []Rebalance
}

// NewEigenPortfolio 创建策略. 价格从 u 读取, 持仓数量由台账写回 u.
func NewEigenPortfolio(cfg types.StrategyConfig, u *universe.Universe, account Account, log zerolog.Logger, rec *metrics.Recorder) (*EigenPortfolio, error) {
	if u == nil || account == nil {
		return nil, fmt.Errorf("universe and account are required")
	}
	if cfg.TopEigen < 1 {
		return nil, fmt.Errorf("top_eigen must be positive, got %d", cfg.TopEigen)
	}
	norm, err := weighting.ParseNormalization(cfg.Normalization)
	if err != nil {
		return nil, err
	}
	sched, err := schedule.New(cfg.Lookback, cfg.RebalancePeriod)
	if err != nil {
		return nil, err
	}

	log = log.With().Str("strategy", cfg.Name).Logger()
	if !cfg.PrintDebug {
		log = log.Level(zerolog.WarnLevel)
	}

	s := &EigenPortfolio{
		cfg:        cfg,
		scheme:     weighting.ParseScheme(cfg.WeightingScheme),
		norm:       norm,
		universe:   u,
		history:    u,
		account:    account,
		scheduler:  sched,
		ledger:     ledger.New(u, log, rec),
		reconciler: reconcile.New(account, log),
		metrics:    rec,
		log:        log,
	}
	if s.scheme == weighting.Fallback {
		s.log.Warn().Str("weighting_scheme", cfg.WeightingScheme).Msg("unknown weighting scheme, using first eigenvector")
	}
	return s, nil
}

// SetHistory 替换价格历史来源, 资产顺序必须与资产池一致
func (s *EigenPortfolio) SetHistory(h History) {
	s.history = h
}

// Name 返回策略名称
func (s *EigenPortfolio) Name() string {
	if s.cfg.Name != "" {
		return s.cfg.Name
	}
	return "EigenPortfolio"
}

// Next 记录当日权益, 到期时执行再平衡
func (s *EigenPortfolio) Next(bar Bar) {
	equity := s.account.Value()
	s.state = append(s.state, types.EquityPoint{Date: bar.Date, Equity: equity})
	s.metrics.SetEquity(equity)

	if !s.scheduler.Tick() {
		return
	}

	s.log.Info().Str("date", day(bar.Date)).Int("bar", bar.Index).Msg("rebalancing portfolio")
	rec, err := s.rebalance(bar)
	if err != nil {
		// 保留原有权重和持仓
		s.log.Warn().Err(err).Str("date", day(bar.Date)).Msg("error computing eigen portfolio, rebalance skipped")
		s.metrics.RebalanceSkipped()
		rec = Rebalance{Bar: bar.Index, Date: bar.Date, Skipped: true, Err: err.Error()}
	}
	s.rebalances = append(s.rebalances, rec)
}

func (s *EigenPortfolio) rebalance(bar Bar) (Rebalance, error) {
	ids := s.history.IDs()
	windows := make([][]float64, len(ids))
	for i, id := range ids {
		w, err := s.history.History(id, s.cfg.Lookback+1)
		if err != nil {
			return Rebalance{}, &eigen.DataError{Asset: i, Detail: err.Error()}
		}
		windows[i] = w
	}

	returns, err := eigen.BuildReturns(windows)
	if err != nil {
		return Rebalance{}, err
	}
	d, err := eigen.Decompose(returns, s.cfg.TopEigen)
	if err != nil {
		return Rebalance{}, err
	}
	weights, err := weighting.Synthesize(s.scheme, s.norm, d.Vectors, d.Ratios)
	if err != nil {
		return Rebalance{}, fmt.Errorf("weight synthesis: %w", err)
	}
	if err := s.universe.SetWeights(weights); err != nil {
		return Rebalance{}, err
	}
	s.metrics.RebalanceOK(ids, weights, d.Ratios)

	current := s.universe.Weights()
	wd := zerolog.Dict()
	for _, id := range ids {
		wd.Float64(id, round4(current[id]))
	}
	ratios := make([]float64, len(d.Ratios))
	for i, r := range d.Ratios {
		ratios[i] = round4(r)
	}
	s.log.Info().Str("date", day(bar.Date)).Dict("weights", wd).Msg("eigen portfolio weights")
	s.log.Info().Str("date", day(bar.Date)).Floats64("ratios", ratios).Msg("explained variance ratio")

	plan := reconcile.BuildPlan(ids, current, s.account.Value(), s.history.LastPrices(), s.deadZone())
	orders := s.reconciler.Execute(plan)

	return Rebalance{
		Bar:     bar.Index,
		Date:    bar.Date,
		Weights: current,
		Ratios:  d.Ratios,
		Orders:  len(orders),
	}, nil
}

func (s *EigenPortfolio) deadZone() float64 {
	if s.cfg.DeadZone > 0 {
		return s.cfg.DeadZone
	}
	return reconcile.DefaultDeadZone
}

// NotifyOrder 订单回报交给台账
func (s *EigenPortfolio) NotifyOrder(order types.Order) {
	s.ledger.OnOrder(order)
}

// NotifyTrade 交易回报交给台账
func (s *EigenPortfolio) NotifyTrade(trade types.Trade) {
	s.ledger.OnTrade(trade)
}

// Weights 当前组合权重
func (s *EigenPortfolio) Weights() map[string]float64 {
	return s.universe.Weights()
}

// PortfolioState 每个bar的 (日期, 总权益)
func (s *EigenPortfolio) PortfolioState() []types.EquityPoint {
	out := make([]types.EquityPoint, len(s.state))
	copy(out, s.state)
	return out
}

// Rebalances 全部再平衡记录 (含被跳过的)
func (s *EigenPortfolio) Rebalances() []Rebalance {
	out := make([]Rebalance, len(s.rebalances))
	copy(out, s.rebalances)
	return out
}

// Ledger 订单与交易台账
func (s *EigenPortfolio) Ledger() *ledger.Ledger {
	return s.ledger
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
