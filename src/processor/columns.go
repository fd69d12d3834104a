package processor

// 输入列
const (
	ColOrigin          = "origin"
	ColDestination     = "destination"
	ColMonth           = "month"
	ColPassengers      = "passengers"
	ColAvgFare         = "avg_fare"
	ColSeats           = "seats"
	ColDistanceMiles   = "distance_miles"
	ColCompetitorSeats = "competitor_seats"
	ColLoadFactor      = "load_factor"
)

// 派生列
const (
	ColRoute           = "route"
	ColAircraftType    = "aircraft_type"
	ColSeatsConfigured = "seats_configured"

	ColRevenue      = "revenue"
	ColCost         = "cost"
	ColProfit       = "profit"
	ColProfitMargin = "profit_margin"

	ColLagPassengers   = "lag_passengers"
	ColLagRevenue      = "lag_revenue"
	ColLagProfit       = "lag_profit"
	ColPassengerGrowth = "passenger_growth"
	ColRevenueGrowth   = "revenue_growth"
	ColProfitGrowth    = "profit_growth"

	ColOpportunityScore = "opportunity_score"
)

// 航线汇总列
const (
	ColMonths              = "months"
	ColTotalRevenue        = "total_revenue"
	ColTotalProfit         = "total_profit"
	ColAvgProfitMargin     = "avg_profit_margin"
	ColAvgPassengerGrowth  = "avg_passenger_growth"
	ColAvgRevenueGrowth    = "avg_revenue_growth"
	ColAvgProfitGrowth     = "avg_profit_growth"
	ColAvgCompetitorSeats  = "avg_competitor_seats"
	ColAvgLoadFactor       = "avg_load_factor"
	ColNormProfitMargin    = "norm_profit_margin"
	ColNormPassengerGrowth = "norm_passenger_growth"
	ColNormCompetitorSeats = "norm_competitor_seats"
)

// 机队汇总列
const (
	ColTotalPassengers        = "total_passengers"
	ColAvgPassengersPerFlight = "avg_passengers_per_flight"
	ColAvgLoadFactorProxy     = "avg_load_factor_proxy"
	ColProfitPerSeatProxy     = "profit_per_seat_proxy"
)

// RequiredColumns 输入文件至少包含的列
var RequiredColumns = []string{
	ColOrigin, ColDestination, ColMonth, ColPassengers, ColAvgFare,
	ColSeats, ColDistanceMiles, ColCompetitorSeats, ColLoadFactor,
}

// MonthLayout 清洗后month列的统一格式
const MonthLayout = "2006-01-02"
