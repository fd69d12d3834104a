package processor

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hkagei/jetblue-route-planning/src/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFleetAggregator_Summarize(t *testing.T) {
	df := prepared(t, twoRoutes())

	fleet, excluded, err := NewFleetAggregator().Summarize(df)
	require.NoError(t, err)
	assert.Zero(t, excluded)

	require.Equal(t, 2, fleet.Nrow())
	assert.Equal(t, []string{"A321", "A321 Mint"}, fleet.Col(ColAircraftType).Records())

	months, _ := fleet.Col(ColMonths).Int()
	assert.Equal(t, []int{2, 3}, months)
	total, _ := fleet.Col(ColTotalPassengers).Int()
	assert.Equal(t, []int{168, 370}, total)
	seats, _ := fleet.Col(ColSeatsConfigured).Int()
	assert.Equal(t, []int{200, 159}, seats)

	avg := colFloat(fleet, ColAvgPassengersPerFlight)
	assert.InDelta(t, 84, avg[0], 1e-9)
	assert.InDelta(t, 370.0/3, avg[1], 1e-9)

	proxy := colFloat(fleet, ColAvgLoadFactorProxy)
	assert.InDelta(t, 0.42, proxy[0], 1e-9)
	assert.InDelta(t, 370.0/3/159, proxy[1], 1e-9)

	profit := colFloat(fleet, ColTotalProfit)
	perSeat := colFloat(fleet, ColProfitPerSeatProxy)
	assert.InDelta(t, profit[0]/(200*2), perSeat[0], 1e-9)
	assert.InDelta(t, profit[1]/(159*3), perSeat[1], 1e-9)
}

func TestFleetAggregator_ExcludesUnmapped(t *testing.T) {
	raw := rawFrame(
		[]string{"JFK", "LAX", "2024-01", "100", "300", "159", "2475", "1000", "0.8"},
		[]string{"MCO", "PVD", "2024-01", "90", "150", "140", "1072", "300", "0.6"},
		[]string{"MCO", "PVD", "2024-02", "95", "150", "140", "1072", "300", "0.6"},
	)
	fleet, excluded, err := NewFleetAggregator().Summarize(prepared(t, raw))
	require.NoError(t, err)
	assert.Equal(t, 2, excluded)
	assert.Equal(t, []string{"A321 Mint"}, fleet.Col(ColAircraftType).Records())
}

func TestFleetAggregator_InconsistentSeats(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"A320", "A320"}, series.String, ColAircraftType),
		utils.NullableIntSeries(ColSeatsConfigured, []int{162, 150}, []bool{true, true}),
		series.New([]int{100, 120}, series.Int, ColPassengers),
	)
	_, _, err := NewFleetAggregator().Summarize(df)
	assert.ErrorIs(t, err, ErrInconsistentSeats)
}

func TestFleetAggregator_MissingColumns(t *testing.T) {
	df := dataframe.New(series.New([]int{1}, series.Int, ColPassengers))
	_, _, err := NewFleetAggregator().Summarize(df)
	assert.ErrorIs(t, err, ErrMissingColumn)
}
