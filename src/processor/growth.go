package processor

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/hkagei/jetblue-route-planning/src/utils"
)

// laggedMetrics 源列 -> (滞后列, 增长列)
var laggedMetrics = []struct {
	source, lag, growth string
}{
	{ColPassengers, ColLagPassengers, ColPassengerGrowth},
	{ColRevenue, ColLagRevenue, ColRevenueGrowth},
	{ColProfit, ColLagProfit, ColProfitGrowth},
}

// GrowthEngine 滞后特征、环比增长、航线汇总、机会评分与回填
type GrowthEngine struct {
	scoring config.Scoring
}

func NewGrowthEngine(scoring config.Scoring) *GrowthEngine {
	return &GrowthEngine{scoring: scoring}
}

func (g *GrowthEngine) Name() string { return "growth" }

// Growth (cur - prev) / prev, prev缺失或为0时返回NaN
func Growth(cur, prev float64) float64 {
	if math.IsNaN(prev) || prev == 0 {
		return math.NaN()
	}
	return (cur - prev) / prev
}

// Lag 组内上一行的值, 每组第一行为NaN. 不考虑月份间隔.
func Lag(vals []float64, groups map[string][]int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		out[i] = math.NaN()
	}
	for _, idx := range groups {
		for k := 1; k < len(idx); k++ {
			out[idx[k]] = vals[idx[k-1]]
		}
	}
	return out
}

// MinMaxNorm (x - min) / (max - min). NaN不参与min/max且保持NaN;
// max == min 时所有已定义的值归一化为0.
func MinMaxNorm(vals []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(vals))
	for i, v := range vals {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case hi == lo:
			out[i] = 0
		default:
			out[i] = (v - lo) / (hi - lo)
		}
	}
	return out
}

// Apply 依次执行: 滞后 -> 增长 -> 汇总 -> 评分 -> 回填
func (g *GrowthEngine) Apply(df dataframe.DataFrame) (monthly, summary dataframe.DataFrame, err error) {
	monthly, err = g.AddLagAndGrowth(df)
	if err != nil {
		return monthly, summary, err
	}
	summary, err = BuildRouteSummary(monthly)
	if err != nil {
		return monthly, summary, err
	}
	summary, err = g.Score(summary)
	if err != nil {
		return monthly, summary, err
	}
	monthly, err = MergeScore(monthly, summary)
	return monthly, summary, err
}

// Process 实现DataProcess, 只返回回填评分后的月度表
func (g *GrowthEngine) Process(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	monthly, _, err := g.Apply(df)
	return monthly, err
}

// AddLagAndGrowth 按(route, month)稳定排序后计算滞后值与环比增长
func (g *GrowthEngine) AddLagAndGrowth(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if missing := utils.MissingColumns(df, ColRoute, ColMonth, ColPassengers, ColRevenue, ColProfit); len(missing) > 0 {
		return df, fmt.Errorf("growth: %w: %v", ErrMissingColumn, missing)
	}

	df = utils.ArrangeBy(df, ColRoute, ColMonth)
	if df.Err != nil {
		return df, fmt.Errorf("growth: sort: %w", df.Err)
	}

	_, groups := utils.GroupIndex(df.Col(ColRoute).Records())
	if err := checkMonthsIncreasing(df, groups); err != nil {
		return df, err
	}

	for _, m := range laggedMetrics {
		cur := utils.Floats(df, m.source)
		lag := Lag(cur, groups)
		growth := make([]float64, len(cur))
		for i := range cur {
			growth[i] = Growth(cur[i], lag[i])
		}
		df = df.Mutate(utils.FloatSeries(m.lag, lag)).
			Mutate(utils.FloatSeries(m.growth, growth))
	}
	if df.Err != nil {
		return df, fmt.Errorf("growth: %w", df.Err)
	}
	return df, nil
}

func checkMonthsIncreasing(df dataframe.DataFrame, groups map[string][]int) error {
	months := df.Col(ColMonth).Records()
	routes := df.Col(ColRoute).Records()
	for _, idx := range groups {
		for k := 1; k < len(idx); k++ {
			if months[idx[k]] <= months[idx[k-1]] {
				return fmt.Errorf("%w: %s %s", ErrDuplicateMonth, routes[idx[k]], months[idx[k]])
			}
		}
	}
	return nil
}

// BuildRouteSummary 每条航线一行: 合计、均值(跳过未定义值)
func BuildRouteSummary(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if df.Nrow() == 0 {
		return df, ErrEmptyTable
	}
	order, groups := utils.GroupIndex(df.Col(ColRoute).Records())

	revenue := utils.Floats(df, ColRevenue)
	profit := utils.Floats(df, ColProfit)

	type mean struct {
		source, target string
	}
	means := []mean{
		{ColProfitMargin, ColAvgProfitMargin},
		{ColPassengerGrowth, ColAvgPassengerGrowth},
		{ColRevenueGrowth, ColAvgRevenueGrowth},
		{ColProfitGrowth, ColAvgProfitGrowth},
	}
	for _, optional := range []mean{
		{ColCompetitorSeats, ColAvgCompetitorSeats},
		{ColLoadFactor, ColAvgLoadFactor},
	} {
		if utils.HasColumn(df, optional.source) {
			means = append(means, optional)
		}
	}

	n := len(order)
	months := make([]int, n)
	totalRevenue := make([]float64, n)
	totalProfit := make([]float64, n)
	meanVals := make([][]float64, len(means))
	sources := make([][]float64, len(means))
	for j, m := range means {
		meanVals[j] = make([]float64, n)
		sources[j] = utils.Floats(df, m.source)
	}

	for r, route := range order {
		idx := groups[route]
		months[r] = len(idx)
		totalRevenue[r] = utils.SumDefined(revenue, idx)
		totalProfit[r] = utils.SumDefined(profit, idx)
		for j := range means {
			meanVals[j][r] = utils.MeanDefined(sources[j], idx)
		}
	}

	cols := []series.Series{
		series.New(order, series.String, ColRoute),
		series.New(months, series.Int, ColMonths),
		utils.FloatSeries(ColTotalRevenue, totalRevenue),
		utils.FloatSeries(ColTotalProfit, totalProfit),
	}
	for j, m := range means {
		cols = append(cols, utils.FloatSeries(m.target, meanVals[j]))
	}

	summary := dataframe.New(cols...)
	return summary, summary.Err
}

// Score 计算归一化分量与opportunity_score
func (g *GrowthEngine) Score(summary dataframe.DataFrame) (dataframe.DataFrame, error) {
	n := summary.Nrow()
	score := make([]float64, n)

	// 乘客增长缺失按0处理, 其它增长指标保持缺失
	paxGrowth := utils.Floats(summary, ColAvgPassengerGrowth)
	filled := make([]float64, n)
	for i, v := range paxGrowth {
		if math.IsNaN(v) {
			v = 0
		}
		filled[i] = v
	}
	normMargin := MinMaxNorm(utils.Floats(summary, ColAvgProfitMargin))
	normPax := MinMaxNorm(filled)
	summary = summary.Mutate(utils.FloatSeries(ColNormProfitMargin, normMargin)).
		Mutate(utils.FloatSeries(ColNormPassengerGrowth, normPax))

	var normSeats []float64
	if utils.HasColumn(summary, ColAvgCompetitorSeats) {
		normSeats = MinMaxNorm(utils.Floats(summary, ColAvgCompetitorSeats))
		summary = summary.Mutate(utils.FloatSeries(ColNormCompetitorSeats, normSeats))
	}

	s := g.scoring
	switch s.Formula {
	case config.ScoreWeightedBlend:
		if normSeats == nil {
			return summary, fmt.Errorf("score: %w: %s", ErrMissingColumn, ColCompetitorSeats)
		}
		for i := 0; i < n; i++ {
			score[i] = s.MarginWeight*normMargin[i] +
				s.PaxGrowthWeight*normPax[i] +
				s.CompetitionWeight*(1-normSeats[i])
		}
	case config.ScoreGrowthBlend:
		profitGrowth := utils.Floats(summary, ColAvgProfitGrowth)
		revenueGrowth := utils.Floats(summary, ColAvgRevenueGrowth)
		for i := 0; i < n; i++ {
			score[i] = s.ProfitGrowthWeight*profitGrowth[i] + s.RevenueGrowthWeight*revenueGrowth[i]
		}
	default:
		return summary, fmt.Errorf("score: unknown formula %q", s.Formula)
	}

	summary = summary.Mutate(utils.FloatSeries(ColOpportunityScore, score))
	return summary, summary.Err
}

// MergeScore 按route把航线评分广播到每个月度行. 只追加一列, 行数与顺序不变.
func MergeScore(df, summary dataframe.DataFrame) (dataframe.DataFrame, error) {
	if missing := utils.MissingColumns(summary, ColRoute, ColOpportunityScore); len(missing) > 0 {
		return df, fmt.Errorf("merge score: %w: %v", ErrMissingColumn, missing)
	}
	if utils.HasColumn(df, ColOpportunityScore) {
		df = df.Drop(ColOpportunityScore)
	}

	scores := make(map[string]float64, summary.Nrow())
	summaryScores := utils.Floats(summary, ColOpportunityScore)
	for i, route := range summary.Col(ColRoute).Records() {
		scores[route] = summaryScores[i]
	}

	routes := df.Col(ColRoute).Records()
	out := make([]float64, len(routes))
	for i, route := range routes {
		v, ok := scores[route]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}

	df = df.Mutate(utils.FloatSeries(ColOpportunityScore, out))
	if df.Err != nil {
		return df, fmt.Errorf("merge score: %w", df.Err)
	}
	return df, nil
}
