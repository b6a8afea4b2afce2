package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder 再平衡引擎的 Prometheus 指标. nil Recorder 的所有方法都是空操作.
type Recorder struct {
	Rebalances   *prometheus.CounterVec
	Orders       *prometheus.CounterVec
	TradesClosed prometheus.Counter
	Equity       prometheus.Gauge
	Weights      *prometheus.GaugeVec
	ExplainedVar *prometheus.GaugeVec
	TradeNetPnL  prometheus.Histogram
}

// NewRecorder 创建指标并注册到 reg
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		Rebalances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eigen_rebalances_total",
				Help: "Rebalance cycles by result (ok, skipped)",
			},
			[]string{"result"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eigen_orders_total",
				Help: "Order status notifications by status",
			},
			[]string{"status"},
		),
		TradesClosed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "eigen_trades_closed_total",
				Help: "Number of closed trades",
			},
		),
		Equity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eigen_portfolio_equity",
				Help: "Mark-to-market portfolio value at the latest bar",
			},
		),
		Weights: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eigen_weight",
				Help: "Current target weight per asset",
			},
			[]string{"asset"},
		),
		ExplainedVar: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eigen_explained_variance_ratio",
				Help: "Explained variance ratio of the principal components used at the latest rebalance",
			},
			[]string{"component"},
		),
		TradeNetPnL: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eigen_trade_net_pnl",
				Help:    "Net profit and loss of closed trades",
				Buckets: []float64{-10000, -1000, -100, -10, 0, 10, 100, 1000, 10000},
			},
		),
	}

	collectors := []prometheus.Collector{
		r.Rebalances, r.Orders, r.TradesClosed, r.Equity, r.Weights, r.ExplainedVar, r.TradeNetPnL,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RebalanceOK 记录一次成功的再平衡
func (r *Recorder) RebalanceOK(assets []string, weights []float64, ratios []float64) {
	if r == nil {
		return
	}
	r.Rebalances.WithLabelValues("ok").Inc()
	for i, a := range assets {
		if i < len(weights) {
			r.Weights.WithLabelValues(a).Set(weights[i])
		}
	}
	r.ExplainedVar.Reset()
	for i, v := range ratios {
		r.ExplainedVar.WithLabelValues(strconv.Itoa(i + 1)).Set(v)
	}
}

// RebalanceSkipped 记录一次被跳过的再平衡
func (r *Recorder) RebalanceSkipped() {
	if r == nil {
		return
	}
	r.Rebalances.WithLabelValues("skipped").Inc()
}

// Order 记录订单状态变化
func (r *Recorder) Order(status string) {
	if r == nil {
		return
	}
	r.Orders.WithLabelValues(status).Inc()
}

// TradeClosed 记录已平仓交易
func (r *Recorder) TradeClosed(netPnL float64) {
	if r == nil {
		return
	}
	r.TradesClosed.Inc()
	r.TradeNetPnL.Observe(netPnL)
}

// SetEquity 更新总权益
func (r *Recorder) SetEquity(v float64) {
	if r == nil {
		return
	}
	r.Equity.Set(v)
}
