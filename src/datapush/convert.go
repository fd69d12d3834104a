package datapush

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/hkagei/jetblue-route-planning/src/models"
	"github.com/hkagei/jetblue-route-planning/src/processor"
	"github.com/hkagei/jetblue-route-planning/src/utils"
)

// floatPtr NaN -> nil
func floatPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// intPtr NaN -> nil
func intPtr(v float64) *int {
	if math.IsNaN(v) {
		return nil
	}
	i := int(math.Round(v))
	return &i
}

// defined NaN -> 0, 只用于计数与跳过缺失值的合计
func defined(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func requireColumns(df dataframe.DataFrame, names ...string) error {
	if missing := utils.MissingColumns(df, names...); len(missing) > 0 {
		return fmt.Errorf("%w: %v", processor.ErrMissingColumn, missing)
	}
	return nil
}

// MonthlyRecords 月度宽表 -> 导出行
func MonthlyRecords(df dataframe.DataFrame) ([]models.RouteMonthRecord, error) {
	if err := requireColumns(df, processor.ColOrigin, processor.ColDestination, processor.ColRoute,
		processor.ColMonth, processor.ColAircraftType, processor.ColSeatsConfigured); err != nil {
		return nil, err
	}

	origin := df.Col(processor.ColOrigin).Records()
	dest := df.Col(processor.ColDestination).Records()
	route := df.Col(processor.ColRoute).Records()
	month := df.Col(processor.ColMonth).Records()
	aircraft, hasAircraft := utils.Strings(df, processor.ColAircraftType)
	seatsCfg := utils.Floats(df, processor.ColSeatsConfigured)

	f := func(name string) []float64 { return utils.Floats(df, name) }
	pax, fare := f(processor.ColPassengers), f(processor.ColAvgFare)
	seats, dist := f(processor.ColSeats), f(processor.ColDistanceMiles)
	comp, lf := f(processor.ColCompetitorSeats), f(processor.ColLoadFactor)
	rev, cost := f(processor.ColRevenue), f(processor.ColCost)
	profit, margin := f(processor.ColProfit), f(processor.ColProfitMargin)
	lagPax, lagRev, lagProfit := f(processor.ColLagPassengers), f(processor.ColLagRevenue), f(processor.ColLagProfit)
	gPax, gRev, gProfit := f(processor.ColPassengerGrowth), f(processor.ColRevenueGrowth), f(processor.ColProfitGrowth)
	score := f(processor.ColOpportunityScore)

	out := make([]models.RouteMonthRecord, df.Nrow())
	for i := range out {
		r := models.RouteMonthRecord{
			Origin:      origin[i],
			Destination: dest[i],
			Route:       route[i],
			Month:       month[i],
			Passengers:  intPtr(pax[i]),
			AvgFare:     floatPtr(fare[i]),

			Seats:           floatPtr(seats[i]),
			DistanceMiles:   floatPtr(dist[i]),
			CompetitorSeats: floatPtr(comp[i]),
			LoadFactor:      floatPtr(lf[i]),

			Revenue:      floatPtr(rev[i]),
			Cost:         floatPtr(cost[i]),
			Profit:       floatPtr(profit[i]),
			ProfitMargin: floatPtr(margin[i]),

			LagPassengers:    floatPtr(lagPax[i]),
			LagRevenue:       floatPtr(lagRev[i]),
			LagProfit:        floatPtr(lagProfit[i]),
			PassengerGrowth:  floatPtr(gPax[i]),
			RevenueGrowth:    floatPtr(gRev[i]),
			ProfitGrowth:     floatPtr(gProfit[i]),
			OpportunityScore: floatPtr(score[i]),
		}
		if hasAircraft[i] {
			a := aircraft[i]
			r.AircraftType = &a
		}
		r.SeatsConfigured = intPtr(seatsCfg[i])
		out[i] = r
	}
	return out, nil
}

// RouteSummaries 航线汇总表 -> 导出行
func RouteSummaries(df dataframe.DataFrame) ([]models.RouteSummary, error) {
	if err := requireColumns(df, processor.ColRoute, processor.ColMonths); err != nil {
		return nil, err
	}
	route := df.Col(processor.ColRoute).Records()
	months := utils.Floats(df, processor.ColMonths)

	f := func(name string) []float64 { return utils.Floats(df, name) }
	totalRev, totalProfit := f(processor.ColTotalRevenue), f(processor.ColTotalProfit)
	margin := f(processor.ColAvgProfitMargin)
	gPax, gRev, gProfit := f(processor.ColAvgPassengerGrowth), f(processor.ColAvgRevenueGrowth), f(processor.ColAvgProfitGrowth)
	comp, lf := f(processor.ColAvgCompetitorSeats), f(processor.ColAvgLoadFactor)
	nMargin, nPax, nComp := f(processor.ColNormProfitMargin), f(processor.ColNormPassengerGrowth), f(processor.ColNormCompetitorSeats)
	score := f(processor.ColOpportunityScore)

	out := make([]models.RouteSummary, df.Nrow())
	for i := range out {
		out[i] = models.RouteSummary{
			Route:               route[i],
			Months:              int(defined(months[i])),
			TotalRevenue:        defined(totalRev[i]),
			TotalProfit:         defined(totalProfit[i]),
			AvgProfitMargin:     floatPtr(margin[i]),
			AvgPassengerGrowth:  floatPtr(gPax[i]),
			AvgRevenueGrowth:    floatPtr(gRev[i]),
			AvgProfitGrowth:     floatPtr(gProfit[i]),
			AvgCompetitorSeats:  floatPtr(comp[i]),
			AvgLoadFactor:       floatPtr(lf[i]),
			NormProfitMargin:    floatPtr(nMargin[i]),
			NormPassengerGrowth: floatPtr(nPax[i]),
			NormCompetitorSeats: floatPtr(nComp[i]),
			OpportunityScore:    floatPtr(score[i]),
		}
	}
	return out, nil
}

// FleetSummaries 机队汇总表 -> 导出行
func FleetSummaries(df dataframe.DataFrame) ([]models.FleetSummary, error) {
	if err := requireColumns(df, processor.ColAircraftType, processor.ColMonths,
		processor.ColTotalPassengers, processor.ColSeatsConfigured); err != nil {
		return nil, err
	}
	aircraft := df.Col(processor.ColAircraftType).Records()

	f := func(name string) []float64 { return utils.Floats(df, name) }
	months, totalPax, seats := f(processor.ColMonths), f(processor.ColTotalPassengers), f(processor.ColSeatsConfigured)
	avgPax, proxy := f(processor.ColAvgPassengersPerFlight), f(processor.ColAvgLoadFactorProxy)
	profit, perSeat := f(processor.ColTotalProfit), f(processor.ColProfitPerSeatProxy)

	out := make([]models.FleetSummary, df.Nrow())
	for i := range out {
		out[i] = models.FleetSummary{
			AircraftType:           aircraft[i],
			Months:                 int(defined(months[i])),
			TotalPassengers:        int(defined(totalPax[i])),
			AvgPassengersPerFlight: floatPtr(avgPax[i]),
			SeatsConfigured:        int(defined(seats[i])),
			AvgLoadFactorProxy:     floatPtr(proxy[i]),
			TotalProfit:            defined(profit[i]),
			ProfitPerSeatProxy:     floatPtr(perSeat[i]),
		}
	}
	return out, nil
}
