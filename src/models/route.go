// Package models holds the typed rows written by the exporters.
// Undefined values are nil pointers: an empty CSV cell, a NULL in SQLite.
package models

// RouteMonthRecord is one (origin, destination, month) row of the enriched table.
type RouteMonthRecord struct {
	Origin          string   `csv:"origin" db:"origin"`
	Destination     string   `csv:"destination" db:"destination"`
	Route           string   `csv:"route" db:"route"`
	Month           string   `csv:"month" db:"month"`
	Passengers      *int     `csv:"passengers" db:"passengers"`
	AvgFare         *float64 `csv:"avg_fare" db:"avg_fare"`
	Seats           *float64 `csv:"seats" db:"seats"`
	DistanceMiles   *float64 `csv:"distance_miles" db:"distance_miles"`
	CompetitorSeats *float64 `csv:"competitor_seats" db:"competitor_seats"`
	LoadFactor      *float64 `csv:"load_factor" db:"load_factor"`
	AircraftType    *string  `csv:"aircraft_type" db:"aircraft_type"`
	SeatsConfigured *int     `csv:"seats_configured" db:"seats_configured"`

	Revenue      *float64 `csv:"revenue" db:"revenue"`
	Cost         *float64 `csv:"cost" db:"cost"`
	Profit       *float64 `csv:"profit" db:"profit"`
	ProfitMargin *float64 `csv:"profit_margin" db:"profit_margin"`

	LagPassengers   *float64 `csv:"lag_passengers" db:"lag_passengers"`
	LagRevenue      *float64 `csv:"lag_revenue" db:"lag_revenue"`
	LagProfit       *float64 `csv:"lag_profit" db:"lag_profit"`
	PassengerGrowth *float64 `csv:"passenger_growth" db:"passenger_growth"`
	RevenueGrowth   *float64 `csv:"revenue_growth" db:"revenue_growth"`
	ProfitGrowth    *float64 `csv:"profit_growth" db:"profit_growth"`

	OpportunityScore *float64 `csv:"opportunity_score" db:"opportunity_score"`
}

// RouteSummary is one row per distinct route.
type RouteSummary struct {
	Route               string   `csv:"route" db:"route"`
	Months              int      `csv:"months" db:"months"`
	TotalRevenue        float64  `csv:"total_revenue" db:"total_revenue"`
	TotalProfit         float64  `csv:"total_profit" db:"total_profit"`
	AvgProfitMargin     *float64 `csv:"avg_profit_margin" db:"avg_profit_margin"`
	AvgPassengerGrowth  *float64 `csv:"avg_passenger_growth" db:"avg_passenger_growth"`
	AvgRevenueGrowth    *float64 `csv:"avg_revenue_growth" db:"avg_revenue_growth"`
	AvgProfitGrowth     *float64 `csv:"avg_profit_growth" db:"avg_profit_growth"`
	AvgCompetitorSeats  *float64 `csv:"avg_competitor_seats" db:"avg_competitor_seats"`
	AvgLoadFactor       *float64 `csv:"avg_load_factor" db:"avg_load_factor"`
	NormProfitMargin    *float64 `csv:"norm_profit_margin" db:"norm_profit_margin"`
	NormPassengerGrowth *float64 `csv:"norm_passenger_growth" db:"norm_passenger_growth"`
	NormCompetitorSeats *float64 `csv:"norm_competitor_seats" db:"norm_competitor_seats"`
	OpportunityScore    *float64 `csv:"opportunity_score" db:"opportunity_score"`
}

// FleetSummary is one row per aircraft type.
type FleetSummary struct {
	AircraftType           string   `csv:"aircraft_type" db:"aircraft_type"`
	Months                 int      `csv:"months" db:"months"`
	TotalPassengers        int      `csv:"total_passengers" db:"total_passengers"`
	AvgPassengersPerFlight *float64 `csv:"avg_passengers_per_flight" db:"avg_passengers_per_flight"`
	SeatsConfigured        int      `csv:"seats_configured" db:"seats_configured"`
	AvgLoadFactorProxy     *float64 `csv:"avg_load_factor_proxy" db:"avg_load_factor_proxy"`
	TotalProfit            float64  `csv:"total_profit" db:"total_profit"`
	ProfitPerSeatProxy     *float64 `csv:"profit_per_seat_proxy" db:"profit_per_seat_proxy"`
}
