package processor

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/hkagei/jetblue-route-planning/src/utils"
)

// FinancialCalculator 逐行计算收入、成本、利润、利润率
type FinancialCalculator struct {
	costs config.Costs
}

func NewFinancialCalculator(costs config.Costs) *FinancialCalculator {
	return &FinancialCalculator{costs: costs}
}

func (f *FinancialCalculator) Name() string { return "finance" }

// Revenue passengers × avg_fare
func Revenue(passengers, avgFare float64) float64 {
	return passengers * avgFare
}

// Cost 按所选成本模型计算
func (f *FinancialCalculator) Cost(passengers, seats, distance float64) float64 {
	c := f.costs
	if c.Model == config.CostPerSeatMile {
		return seats * distance * c.CASM
	}
	return passengers*c.CostPerPax + c.CostPerFlight*c.FlightsPerMonth
}

// ProfitMargin revenue为0时返回NaN
func ProfitMargin(profit, revenue float64) float64 {
	if revenue == 0 || math.IsNaN(revenue) {
		return math.NaN()
	}
	return profit / revenue
}

func (f *FinancialCalculator) Process(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	required := []string{ColPassengers, ColAvgFare}
	if f.costs.Model == config.CostPerSeatMile {
		required = append(required, ColSeats, ColDistanceMiles)
	}
	if missing := utils.MissingColumns(df, required...); len(missing) > 0 {
		return df, fmt.Errorf("finance: %w: %v", ErrMissingColumn, missing)
	}

	pax := utils.Floats(df, ColPassengers)
	fare := utils.Floats(df, ColAvgFare)
	seats := utils.Floats(df, ColSeats)
	distance := utils.Floats(df, ColDistanceMiles)

	n := df.Nrow()
	revenue := make([]float64, n)
	cost := make([]float64, n)
	profit := make([]float64, n)
	margin := make([]float64, n)

	for i := 0; i < n; i++ {
		revenue[i] = Revenue(pax[i], fare[i])
		cost[i] = f.Cost(pax[i], seats[i], distance[i])
		profit[i] = revenue[i] - cost[i]
		margin[i] = ProfitMargin(profit[i], revenue[i])
	}

	df = df.Mutate(utils.FloatSeries(ColRevenue, revenue)).
		Mutate(utils.FloatSeries(ColCost, cost)).
		Mutate(utils.FloatSeries(ColProfit, profit)).
		Mutate(utils.FloatSeries(ColProfitMargin, margin))
	if df.Err != nil {
		return df, fmt.Errorf("finance: %w", df.Err)
	}
	return df, nil
}
