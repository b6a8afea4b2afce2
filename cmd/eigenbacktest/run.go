package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsxjacky/eigen-rebalance/internal/config"
	"github.com/opsxjacky/eigen-rebalance/internal/cost"
	"github.com/opsxjacky/eigen-rebalance/internal/data"
	"github.com/opsxjacky/eigen-rebalance/internal/engine"
	"github.com/opsxjacky/eigen-rebalance/internal/metrics"
)

type overrides struct {
	configPath      string
	topEigen        int
	scheme          string
	lookback        int
	rebalancePeriod int
	output          string
	metricsFile     string
}

func (o *overrides) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "configs/eigen.yaml", "path to the YAML config")
	f.IntVar(&o.topEigen, "top-eigen", 0, "number of principal components to use")
	f.StringVar(&o.scheme, "scheme", "", "weighting scheme (equal, variance, first_only)")
	f.IntVar(&o.lookback, "lookback", 0, "covariance window length in bars")
	f.IntVar(&o.rebalancePeriod, "rebalance-period", 0, "bars between rebalances")
}

// load 读取配置并应用命令行覆盖
func (o *overrides) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	p := &cfg.Strategy.Params
	if o.topEigen != 0 {
		p.TopEigen = o.topEigen
	}
	if o.scheme != "" {
		p.WeightingScheme = o.scheme
	}
	if o.lookback != 0 {
		p.Lookback = o.lookback
	}
	if o.rebalancePeriod != 0 {
		p.RebalancePeriod = o.rebalancePeriod
	}
	if o.output != "" {
		cfg.Output.Path = o.output
	}
	if o.metricsFile != "" {
		cfg.Output.MetricsFile = o.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", o.configPath, err)
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	o := &overrides{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the backtest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := o.load()
			if err != nil {
				return err
			}

			bc, err := cfg.ToBacktestConfig()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			rec, err := metrics.NewRecorder(reg)
			if err != nil {
				return err
			}

			e := engine.New(bc, cfg.ToStrategyConfig(), log)
			e.SetDataLoader(data.NewCSVLoader(cfg.GetDataDir()))
			e.SetCostModel(cost.NewDefaultCostModel(cfg.ToCostConfig()))
			e.SetMetrics(rec)

			if _, err := e.Run(cmd.Context()); err != nil {
				return fmt.Errorf("backtest failed: %w", err)
			}
			e.PrintSummary()

			out := cfg.GetOutputPath()
			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("failed to create output dir: %w", err)
			}
			if err := e.ExportResults(filepath.Join(out, "result.json")); err != nil {
				return err
			}

			if cfg.Output.MetricsFile != "" {
				if err := prometheus.WriteToTextfile(cfg.Output.MetricsFile, reg); err != nil {
					return fmt.Errorf("failed to write metrics: %w", err)
				}
				log.Info().Str("path", cfg.Output.MetricsFile).Msg("metrics written")
			}
			return nil
		},
	}
	o.register(cmd)
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output directory")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "write prometheus metrics to this file")
	return cmd
}

func newValidateCmd() *cobra.Command {
	o := &overrides{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config and print the resolved settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	o.register(cmd)
	return cmd
}
