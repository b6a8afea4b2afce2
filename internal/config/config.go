package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opsxjacky/eigen-rebalance/internal/weighting"
	"github.com/opsxjacky/eigen-rebalance/pkg/types"
)

// Config 配置文件结构
type Config struct {
	Backtest BacktestSection `yaml:"backtest"`
	Assets   []AssetConfig   `yaml:"assets"`
	Strategy StrategySection `yaml:"strategy"`
	Costs    CostsSection    `yaml:"costs"`
	Output   OutputSection   `yaml:"output"`
}

// BacktestSection 回测配置
type BacktestSection struct {
	StartDate      string  `yaml:"start_date"`
	EndDate        string  `yaml:"end_date"`
	InitialCapital float64 `yaml:"initial_capital"`
	DataDir        string  `yaml:"data_dir"`
}

// AssetConfig 资产配置
type AssetConfig struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

// StrategySection 策略配置
type StrategySection struct {
	Type   string         `yaml:"type"`
	Name   string         `yaml:"name"`
	Params StrategyParams `yaml:"params"`
}

// StrategyParams 策略参数. 未填写的字段使用默认值
type StrategyParams struct {
	Lookback        int     `yaml:"lookback"`
	RebalancePeriod int     `yaml:"rebalance_period"`
	TopEigen        int     `yaml:"top_eigen"`
	WeightingScheme string  `yaml:"weighting_scheme"`
	PrintDebug      *bool   `yaml:"print_debug"`
	Normalization   string  `yaml:"normalization"`
	DeadZone        float64 `yaml:"dead_zone"`
}

// CostsSection 成本配置
type CostsSection struct {
	CommissionRate *float64 `yaml:"commission_rate"`
	MinCommission  float64  `yaml:"min_commission"`
	SlippageRate   float64  `yaml:"slippage_rate"`
	TaxRate        float64  `yaml:"tax_rate"`
}

// OutputSection 输出配置
type OutputSection struct {
	Format         string `yaml:"format"`
	Path           string `yaml:"path"`
	GenerateReport bool   `yaml:"generate_report"`
	MetricsFile    string `yaml:"metrics_file"`
}

const (
	defaultCapital    = 100000
	defaultCommission = 0.001
	dateLayout        = "2006-01-02"
)

// LoadConfig 从文件加载配置并填充默认值
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析YAML配置并填充默认值
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	def := types.DefaultStrategyConfig()
	p := &c.Strategy.Params
	if p.Lookback == 0 {
		p.Lookback = def.Lookback
	}
	if p.RebalancePeriod == 0 {
		p.RebalancePeriod = def.RebalancePeriod
	}
	if p.TopEigen == 0 {
		p.TopEigen = def.TopEigen
	}
	if p.WeightingScheme == "" {
		p.WeightingScheme = def.WeightingScheme
	}
	if p.PrintDebug == nil {
		v := def.PrintDebug
		p.PrintDebug = &v
	}
	if p.Normalization == "" {
		p.Normalization = def.Normalization
	}
	if p.DeadZone == 0 {
		p.DeadZone = def.DeadZone
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = def.Name
	}
	if c.Strategy.Type == "" {
		c.Strategy.Type = def.Type
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = defaultCapital
	}
	if c.Costs.CommissionRate == nil {
		v := defaultCommission
		c.Costs.CommissionRate = &v
	}
}

// Validate 检查配置是否可用于回测
func (c *Config) Validate() error {
	p := c.Strategy.Params
	if p.Lookback < 2 {
		return fmt.Errorf("lookback must be at least 2, got %d", p.Lookback)
	}
	if p.RebalancePeriod < 1 {
		return fmt.Errorf("rebalance_period must be positive, got %d", p.RebalancePeriod)
	}
	if p.TopEigen < 1 {
		return fmt.Errorf("top_eigen must be positive, got %d", p.TopEigen)
	}
	if _, err := weighting.ParseNormalization(p.Normalization); err != nil {
		return err
	}
	if p.DeadZone < 0 {
		return fmt.Errorf("dead_zone must not be negative, got %g", p.DeadZone)
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("no assets configured")
	}
	seen := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("asset with empty symbol")
		}
		if seen[a.Symbol] {
			return fmt.Errorf("duplicate asset %q", a.Symbol)
		}
		seen[a.Symbol] = true
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %g", c.Backtest.InitialCapital)
	}
	if _, err := c.ToBacktestConfig(); err != nil {
		return err
	}
	return nil
}

// ToBacktestConfig 转换为回测配置. 日期留空表示不限制
func (c *Config) ToBacktestConfig() (types.BacktestConfig, error) {
	startDate, err := parseDate(c.Backtest.StartDate)
	if err != nil {
		return types.BacktestConfig{}, fmt.Errorf("invalid start_date: %w", err)
	}

	endDate, err := parseDate(c.Backtest.EndDate)
	if err != nil {
		return types.BacktestConfig{}, fmt.Errorf("invalid end_date: %w", err)
	}

	if !startDate.IsZero() && !endDate.IsZero() && endDate.Before(startDate) {
		return types.BacktestConfig{}, fmt.Errorf("end_date %s is before start_date %s", c.Backtest.EndDate, c.Backtest.StartDate)
	}

	return types.BacktestConfig{
		StartDate:      startDate,
		EndDate:        endDate,
		InitialCapital: c.Backtest.InitialCapital,
		Symbols:        c.Symbols(),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

// Symbols 按配置顺序返回资产代码
func (c *Config) Symbols() []string {
	symbols := make([]string, len(c.Assets))
	for i, asset := range c.Assets {
		symbols[i] = asset.Symbol
	}
	return symbols
}

// ToCostConfig 转换为成本配置
func (c *Config) ToCostConfig() types.CostConfig {
	cc := types.CostConfig{
		MinCommission: c.Costs.MinCommission,
		SlippageRate:  c.Costs.SlippageRate,
		TaxRate:       c.Costs.TaxRate,
	}
	if c.Costs.CommissionRate != nil {
		cc.CommissionRate = *c.Costs.CommissionRate
	}
	return cc
}

// ToStrategyConfig 转换为策略配置
func (c *Config) ToStrategyConfig() types.StrategyConfig {
	p := c.Strategy.Params
	config := types.StrategyConfig{
		Name:            c.Strategy.Name,
		Type:            c.Strategy.Type,
		Lookback:        p.Lookback,
		RebalancePeriod: p.RebalancePeriod,
		TopEigen:        p.TopEigen,
		WeightingScheme: p.WeightingScheme,
		Normalization:   p.Normalization,
		DeadZone:        p.DeadZone,
		PrintDebug:      true,
	}
	if p.PrintDebug != nil {
		config.PrintDebug = *p.PrintDebug
	}
	return config
}

// GetDataDir 获取数据目录
func (c *Config) GetDataDir() string {
	if c.Backtest.DataDir != "" {
		return c.Backtest.DataDir
	}
	return "data/sample"
}

// GetOutputPath 获取输出路径
func (c *Config) GetOutputPath() string {
	if c.Output.Path != "" {
		return c.Output.Path
	}
	return "output"
}
