package processor

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/stretchr/testify/require"
)

var header = []string{
	"origin", "destination", "month", "passengers", "avg_fare",
	"seats", "distance_miles", "competitor_seats", "load_factor",
}

// rawFrame 模拟从CSV读入的原始表, 所有列均为字符串
func rawFrame(rows ...[]string) dataframe.DataFrame {
	records := append([][]string{header}, rows...)
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

// twoRoutes JFK-LAX 三个月, BOS-SEA 两个月, 行序故意打乱
func twoRoutes() dataframe.DataFrame {
	return rawFrame(
		[]string{"JFK", "LAX", "2024-02", "150", "300", "159", "2475", "1000", "0.85"},
		[]string{"BOS", "SEA", "2024-02", "88", "400", "200", "2496", "500", "0.44"},
		[]string{"JFK", "LAX", "2024-01", "100", "300", "159", "2475", "1000", "0.80"},
		[]string{"JFK", "LAX", "2024-03", "120", "300", "159", "2475", "1000", "0.75"},
		[]string{"BOS", "SEA", "2024-01", "80", "400", "200", "2496", "500", "0.40"},
	)
}

func prepared(t *testing.T, raw dataframe.DataFrame) dataframe.DataFrame {
	t.Helper()
	dcfg := config.DefaultDataConfig()

	df, err := NewCleaner().Process(raw)
	require.NoError(t, err)
	df, err = NewRouteEnricher(dcfg).Process(df)
	require.NoError(t, err)
	df, err = NewFinancialCalculator(dcfg.Costs).Process(df)
	require.NoError(t, err)
	return df
}

func colFloat(df dataframe.DataFrame, name string) []float64 {
	return df.Col(name).Float()
}
