package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hkagei/jetblue-route-planning/src/utils"
)

// FleetAggregator 按机型汇总运力使用情况. 机型未定义的行不参与汇总.
type FleetAggregator struct{}

func NewFleetAggregator() *FleetAggregator {
	return &FleetAggregator{}
}

func (a *FleetAggregator) Name() string { return "fleet" }

// Summarize 返回汇总表及被排除(机型未定义)的行数
func (a *FleetAggregator) Summarize(df dataframe.DataFrame) (dataframe.DataFrame, int, error) {
	if missing := utils.MissingColumns(df, ColAircraftType, ColSeatsConfigured, ColPassengers); len(missing) > 0 {
		return df, 0, fmt.Errorf("fleet: %w: %v", ErrMissingColumn, missing)
	}

	aircraft, defined := utils.Strings(df, ColAircraftType)
	seats := utils.Floats(df, ColSeatsConfigured)
	pax := utils.Floats(df, ColPassengers)
	profit := utils.Floats(df, ColProfit)

	groups := make(map[string][]int)
	excluded := 0
	for i, a := range aircraft {
		if !defined[i] {
			excluded++
			continue
		}
		groups[a] = append(groups[a], i)
	}

	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)

	n := len(types)
	months := make([]int, n)
	totalPax := make([]int, n)
	avgPax := make([]float64, n)
	seatCfg := make([]int, n)
	proxy := make([]float64, n)
	totalProfit := make([]float64, n)
	perSeat := make([]float64, n)

	for k, t := range types {
		idx := groups[t]

		s, err := invariantSeats(t, seats, idx)
		if err != nil {
			return df, excluded, err
		}

		months[k] = len(idx)
		totalPax[k] = int(math.Round(utils.SumDefined(pax, idx)))
		avgPax[k] = utils.MeanDefined(pax, idx)
		seatCfg[k] = s
		proxy[k] = avgPax[k] / float64(s)
		totalProfit[k] = utils.SumDefined(profit, idx)
		perSeat[k] = totalProfit[k] / float64(s*len(idx))
	}

	out := dataframe.New(
		series.New(types, series.String, ColAircraftType),
		series.New(months, series.Int, ColMonths),
		series.New(totalPax, series.Int, ColTotalPassengers),
		utils.FloatSeries(ColAvgPassengersPerFlight, avgPax),
		series.New(seatCfg, series.Int, ColSeatsConfigured),
		utils.FloatSeries(ColAvgLoadFactorProxy, proxy),
		utils.FloatSeries(ColTotalProfit, totalProfit),
		utils.FloatSeries(ColProfitPerSeatProxy, perSeat),
	)
	return out, excluded, out.Err
}

// invariantSeats 同一机型的座位数必须唯一, 否则视为数据错误
func invariantSeats(aircraft string, seats []float64, idx []int) (int, error) {
	first := seats[idx[0]]
	for _, i := range idx {
		if seats[i] != first || math.IsNaN(seats[i]) {
			return 0, fmt.Errorf("%w: %s has %v and %v", ErrInconsistentSeats, aircraft, first, seats[i])
		}
	}
	if first <= 0 {
		return 0, fmt.Errorf("%w: %s has %v seats", ErrInconsistentSeats, aircraft, first)
	}
	return int(first), nil
}
