package processor

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/hkagei/jetblue-route-planning/src/storage"
	"go.uber.org/zap"
)

// DataProcess 整表进、整表出的一道工序
type DataProcess interface {
	Name() string
	Process(df dataframe.DataFrame) (dataframe.DataFrame, error)
}

// Result 一次批处理的全部输出
type Result struct {
	Monthly      dataframe.DataFrame
	RouteSummary dataframe.DataFrame
	FleetSummary dataframe.DataFrame

	UnmappedRows int // 机型未定义, 未进入机队汇总的行数
	Elapsed      time.Duration
}

// DataProcessor 按 清洗 -> 航线 -> 财务 -> 增长 -> 机队 顺序执行
type DataProcessor struct {
	stages []DataProcess
	growth *GrowthEngine
	fleet  *FleetAggregator
	logger *storage.Logger
}

func NewDataProcessor(dcfg *config.DataConfig, logger *storage.Logger) *DataProcessor {
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	return &DataProcessor{
		stages: []DataProcess{
			NewCleaner(),
			NewRouteEnricher(dcfg),
			NewFinancialCalculator(dcfg.Costs),
		},
		growth: NewGrowthEngine(dcfg.Scoring),
		fleet:  NewFleetAggregator(),
		logger: logger,
	}
}

// Run 每道工序接收上一道的完整输出, 原始表不会被修改
func (p *DataProcessor) Run(raw dataframe.DataFrame) (*Result, error) {
	start := time.Now()
	if raw.Err != nil {
		return nil, fmt.Errorf("input table: %w", raw.Err)
	}
	if raw.Nrow() == 0 {
		return nil, ErrEmptyTable
	}

	df := raw.Copy()
	for _, st := range p.stages {
		t := time.Now()
		out, err := st.Process(df)
		if err != nil {
			p.logger.Error("stage failed", zap.String("stage", st.Name()), zap.Error(err))
			return nil, fmt.Errorf("%s: %w", st.Name(), err)
		}
		p.logger.Debug("stage done",
			zap.String("stage", st.Name()),
			zap.Int("rows", out.Nrow()),
			zap.Int("cols", out.Ncol()),
			zap.Duration("duration", time.Since(t)))
		df = out
	}

	t := time.Now()
	monthly, summary, err := p.growth.Apply(df)
	if err != nil {
		p.logger.Error("stage failed", zap.String("stage", p.growth.Name()), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", p.growth.Name(), err)
	}
	p.logger.Debug("stage done",
		zap.String("stage", p.growth.Name()),
		zap.Int("rows", monthly.Nrow()),
		zap.Int("routes", summary.Nrow()),
		zap.Duration("duration", time.Since(t)))

	fleet, excluded, err := p.fleet.Summarize(monthly)
	if err != nil {
		p.logger.Error("stage failed", zap.String("stage", p.fleet.Name()), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", p.fleet.Name(), err)
	}
	if excluded > 0 {
		p.logger.Warning("rows without aircraft assignment excluded from fleet summary",
			zap.Int("rows", excluded))
	}

	res := &Result{
		Monthly:      monthly,
		RouteSummary: summary,
		FleetSummary: fleet,
		UnmappedRows: excluded,
		Elapsed:      time.Since(start),
	}
	p.logger.Info("pipeline finished",
		zap.Int("rows", monthly.Nrow()),
		zap.Int("routes", summary.Nrow()),
		zap.Int("aircraft_types", fleet.Nrow()),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// CalculateMetrics 运行概况, 用于日志与推送
func (r *Result) CalculateMetrics() map[string]interface{} {
	margins := Describe(r.Monthly.Col(ColProfitMargin).Float())
	return map[string]interface{}{
		"rows":               r.Monthly.Nrow(),
		"routes":             r.RouteSummary.Nrow(),
		"aircraft_types":     r.FleetSummary.Nrow(),
		"unmapped_rows":      r.UnmappedRows,
		"mean_profit_margin": margins.Mean,
		"elapsed":            r.Elapsed.String(),
	}
}
