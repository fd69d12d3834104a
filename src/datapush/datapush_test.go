package datapush

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/hkagei/jetblue-route-planning/src/models"
	"github.com/hkagei/jetblue-route-planning/src/processor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
)

func sampleBundle(t *testing.T) *Bundle {
	t.Helper()
	raw := dataframe.LoadRecords([][]string{
		{"origin", "destination", "month", "passengers", "avg_fare", "seats", "distance_miles", "competitor_seats", "load_factor"},
		{"JFK", "LAX", "2024-01", "100", "300", "159", "2475", "1000", "0.80"},
		{"JFK", "LAX", "2024-02", "150", "300", "159", "2475", "1000", "0.85"},
		{"JFK", "LAX", "2024-03", "120", "300", "159", "2475", "1000", "0.75"},
		{"BOS", "SEA", "2024-01", "80", "400", "200", "2496", "500", "0.40"},
		{"BOS", "SEA", "2024-02", "88", "400", "200", "2496", "500", "0.44"},
		{"MCO", "PVD", "2024-01", "90", "150", "140", "1072", "300", "0.60"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	res, err := processor.NewDataProcessor(config.DefaultDataConfig(), nil).Run(raw)
	require.NoError(t, err)
	b, err := NewBundle(res, "route_monthly_performance.csv", time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return b
}

func TestNewBundle(t *testing.T) {
	b := sampleBundle(t)
	require.NotEmpty(t, b.RunID)
	require.Len(t, b.Monthly, 6)
	require.Len(t, b.Summary, 3)
	require.Len(t, b.Fleet, 2)

	first := b.Monthly[0]
	assert.Equal(t, "BOS-SEA", first.Route)
	assert.Equal(t, "2024-01-01", first.Month)
	require.NotNil(t, first.AircraftType)
	assert.Equal(t, "A321", *first.AircraftType)
	assert.Equal(t, 200, *first.SeatsConfigured)
	assert.Nil(t, first.LagPassengers)
	assert.Nil(t, first.PassengerGrowth)
	require.NotNil(t, b.Monthly[1].PassengerGrowth)
	assert.InDelta(t, 0.1, *b.Monthly[1].PassengerGrowth, 1e-12)

	var unmapped models.RouteMonthRecord
	for _, r := range b.Monthly {
		if r.Route == "MCO-PVD" {
			unmapped = r
		}
	}
	assert.Nil(t, unmapped.AircraftType)
	assert.Nil(t, unmapped.SeatsConfigured)
	assert.NotNil(t, unmapped.OpportunityScore)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	b := sampleBundle(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, b.Monthly))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "origin,destination,route,month,passengers"))

	back, err := ReadCSV[models.RouteMonthRecord](strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, back, 6)
	assert.Nil(t, back[0].LagRevenue, "undefined value stays empty")
	assert.Equal(t, b.Monthly[2].Route, back[2].Route)
	require.NotNil(t, back[2].Profit)
	assert.InDelta(t, *b.Monthly[2].Profit, *back[2].Profit, 1e-6)

	// 未配置机型的航线导出为空单元格
	fields := strings.Split(lines[0], ",")
	aircraftIdx := -1
	for i, f := range fields {
		if f == "aircraft_type" {
			aircraftIdx = i
		}
	}
	require.NotEqual(t, -1, aircraftIdx)
	var checked int
	for _, line := range lines[1:] {
		cells := strings.Split(line, ",")
		if cells[2] != "MCO-PVD" {
			assert.NotEmpty(t, cells[aircraftIdx], line)
			continue
		}
		assert.Empty(t, cells[aircraftIdx], line)
		checked++
	}
	assert.Equal(t, 1, checked)
	for _, r := range back {
		if r.Route == "MCO-PVD" {
			assert.Nil(t, r.AircraftType)
			assert.Nil(t, r.SeatsConfigured)
		}
	}
}

func TestMonthlyRecords_UndefinedFinancials(t *testing.T) {
	raw := dataframe.LoadRecords([][]string{
		{"origin", "destination", "month", "passengers", "avg_fare", "seats", "distance_miles", "competitor_seats", "load_factor"},
		{"JFK", "LAX", "2024-01", "100", "300", "159", "2475", "1000", "0.80"},
		{"JFK", "LAX", "2024-02", "150", "", "159", "2475", "1000", "0.85"},
		{"BOS", "SEA", "2024-01", "80", "400", "200", "2496", "500", "0.40"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	res, err := processor.NewDataProcessor(config.DefaultDataConfig(), nil).Run(raw)
	require.NoError(t, err)
	b, err := NewBundle(res, "fare_gap.csv", time.Now())
	require.NoError(t, err)

	var gap *models.RouteMonthRecord
	for i := range b.Monthly {
		if b.Monthly[i].Route == "JFK-LAX" && b.Monthly[i].Month == "2024-02-01" {
			gap = &b.Monthly[i]
		}
	}
	require.NotNil(t, gap)
	assert.Nil(t, gap.AvgFare)
	assert.Nil(t, gap.Revenue, "undefined revenue is not exported as 0")
	assert.Nil(t, gap.Profit)
	assert.Nil(t, gap.ProfitMargin)
	require.NotNil(t, gap.Cost)
	assert.InDelta(t, 150*65+18000*30.0, *gap.Cost, 1e-6)

	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Save(b))

	q, err := store.Query("SELECT revenue, profit FROM route_performance WHERE route = ? AND month = ?", "JFK-LAX", "2024-02-01")
	require.NoError(t, err)
	require.Len(t, q.Rows, 1)
	assert.Nil(t, q.Rows[0][0])
	assert.Nil(t, q.Rows[0][1])
}

func TestWriteCSV_EmptyWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV[models.FleetSummary](&buf, nil))
	assert.Equal(t, "aircraft_type,months,total_passengers,avg_passengers_per_flight,seats_configured,"+
		"avg_load_factor_proxy,total_profit,profit_per_seat_proxy\n", buf.String())
}

func TestStore_SaveAndQuery(t *testing.T) {
	b := sampleBundle(t)
	store, err := OpenStore(filepath.Join(t.TempDir(), "jetblue.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(b))
	// 再次保存替换结果表, 运行记录追加
	b2 := *b
	b2.RunID = "second"
	require.NoError(t, store.Save(&b2))

	res, err := store.Query("SELECT COUNT(*) FROM " + TableRoutePerformance)
	require.NoError(t, err)
	assert.EqualValues(t, 6, res.Rows[0][0])

	res, err = store.Query("SELECT COUNT(*) FROM " + TableRunLog)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Rows[0][0])

	res, err = store.Query("SELECT aircraft_type, seats_configured FROM route_performance WHERE route = ?", "MCO-PVD")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0][0])
	assert.Nil(t, res.Rows[0][1])

	res, err = store.Query("profit_by_route")
	require.NoError(t, err)
	assert.Equal(t, []string{"route", "total_profit"}, res.Columns)
	assert.Len(t, res.Rows, 3)

	res, err = store.Query("aircraft_mix")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2, "unmapped routes are not part of the aircraft mix")

	res, err = store.Query("revenue_growth")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 6)
}

func TestStore_AllNamedQueriesRun(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Save(sampleBundle(t)))

	for _, name := range QueryNames() {
		t.Run(name, func(t *testing.T) {
			res, err := store.Query(name)
			require.NoError(t, err)
			assert.NotEmpty(t, res.Rows)
		})
	}
}

func TestExcelExporter(t *testing.T) {
	b := sampleBundle(t)
	path := filepath.Join(t.TempDir(), "out", "route_planning.xlsx")

	require.NoError(t, (&ExcelExporter{Path: path}).Export(b.Result))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetMonthly, SheetSummary, SheetFleet}, f.GetSheetList())

	rows, err := f.GetRows(SheetFleet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, processor.ColAircraftType, rows[0][0])
	assert.Equal(t, "A321", rows[1][0])

	monthly, err := f.GetRows(SheetMonthly)
	require.NoError(t, err)
	require.Len(t, monthly, 7)
	routeIdx, aircraftIdx := -1, -1
	for i, name := range monthly[0] {
		switch name {
		case processor.ColRoute:
			routeIdx = i
		case processor.ColAircraftType:
			aircraftIdx = i
		}
	}
	require.NotEqual(t, -1, routeIdx)
	require.NotEqual(t, -1, aircraftIdx)
	for _, row := range monthly[1:] {
		if row[routeIdx] != "MCO-PVD" {
			continue
		}
		// GetRows会截掉行尾空单元格
		if aircraftIdx < len(row) {
			assert.Empty(t, row[aircraftIdx])
		}
	}
}

func TestExporter_Export(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Export.Workbook = "route_planning.xlsx"

	require.NoError(t, NewExporter(cfg, nil).Export(sampleBundle(t)))
	for _, name := range []string{cfg.Export.MonthlyFile, cfg.Export.SummaryFile, cfg.Export.FleetFile,
		cfg.Export.Workbook, cfg.Export.SQLitePath} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		assert.NoError(t, err, name)
	}
}

func TestNotifier_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		if n < 3 {
			fmt.Fprint(w, `{"errcode":310000,"errmsg":"sign not match"}`)
			return
		}
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok"}`)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, 5, time.Millisecond)
	require.True(t, n.Enabled())
	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.JSONEq(t, `{"msgtype":"text","text":{"content":"hello"}}`, body)
}

func TestNotifier_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL, 2, time.Millisecond).Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	assert.False(t, NewNotifier("", 1, 0).Enabled())
}

func TestNotifier_RateLimited(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok"}`)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, 1, 0)
	n.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	require.NoError(t, n.Send(context.Background(), "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, n.Send(ctx, "second"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSummary(t *testing.T) {
	b := sampleBundle(t)
	text := Summary(b)
	assert.Contains(t, text, b.RunID)
	assert.Contains(t, text, "rows: 6")
	assert.Contains(t, text, "unmapped_rows: 1")
	assert.Contains(t, text, "top opportunity:")
}

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()
	b := sampleBundle(t)

	m.Observe("run", b, nil)
	m.Observe("watch", nil, fmt.Errorf("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("run", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("watch", "failed")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.rows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unmapped))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "routeplan_runs_total")
}
