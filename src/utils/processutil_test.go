package utils

import (
	"math"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	for _, s := range []string{"2024-03", "2024-03-01", " 2024/03 ", "03/01/2024", "Mar 2024", "March 2024"} {
		m, err := ParseMonth(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2024, m.Year(), s)
		assert.Equal(t, time.March, m.Month(), s)
	}

	_, err := ParseMonth("2024-13")
	assert.Error(t, err)
	_, err = ParseMonth("")
	assert.Error(t, err)
}

func TestGroupIndex(t *testing.T) {
	order, groups := GroupIndex([]string{"BOS-SEA", "JFK-LAX", "BOS-SEA"})
	assert.Equal(t, []string{"BOS-SEA", "JFK-LAX"}, order)
	assert.Equal(t, []int{0, 2}, groups["BOS-SEA"])
	assert.Equal(t, []int{1}, groups["JFK-LAX"])
}

func TestDefinedAggregates(t *testing.T) {
	vals := []float64{1, math.NaN(), 3}
	assert.InDelta(t, 2.0, MeanDefined(vals, []int{0, 1, 2}), 1e-12)
	assert.InDelta(t, 4.0, SumDefined(vals, []int{0, 1, 2}), 1e-12)
	assert.True(t, math.IsNaN(MeanDefined(vals, []int{1})))
	assert.Zero(t, SumDefined(vals, nil))
}

func TestDescendingIndex(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3, 1}, DescendingIndex([]float64{5, math.NaN(), 9, 5}))
}

func TestNullableSeries(t *testing.T) {
	s := NullableIntSeries("seats", []int{159, 0}, []bool{true, false})
	assert.False(t, s.Elem(0).IsNA())
	assert.True(t, s.Elem(1).IsNA())

	names := NullableStringSeries("aircraft_type", []string{"A321", ""}, []bool{true, false})
	assert.Equal(t, "A321", names.Elem(0).String())
	assert.True(t, names.Elem(1).IsNA())
}

func TestSortedIndex(t *testing.T) {
	origin := []string{"JFK", "BOS", "JFK", "BOS", "FLL"}
	month := []string{"2024-02", "2024-02", "2024-01", "2024-01", "2024-01"}
	assert.Equal(t, []int{3, 1, 4, 2, 0}, SortedIndex(origin, month))

	// 键相同保持输入顺序
	assert.Equal(t, []int{1, 3, 0, 2}, SortedIndex([]string{"b", "a", "b", "a"}))
	assert.Empty(t, SortedIndex())
}

func TestArrangeBy(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"JFK", "BOS", "JFK", "BOS"}, series.String, "origin"),
		series.New([]string{"2024-02", "2024-02", "2024-01", "2024-01"}, series.String, "month"),
		series.New([]string{"A321 Mint", NA, "A321 Mint", NA}, series.String, "aircraft_type"),
	)

	sorted := ArrangeBy(df, "origin", "month")
	require.NoError(t, sorted.Err)
	assert.Equal(t, []string{"BOS", "BOS", "JFK", "JFK"}, sorted.Col("origin").Records())
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-01", "2024-02"}, sorted.Col("month").Records())
	assert.True(t, sorted.Col("aircraft_type").Elem(0).IsNA(), "missing values survive the reorder")
}
