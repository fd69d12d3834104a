package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/hkagei/jetblue-route-planning/src/datapush"
	"github.com/hkagei/jetblue-route-planning/src/datasource/email"
	"github.com/hkagei/jetblue-route-planning/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inputCSV = `origin,destination,month,passengers,avg_fare,seats,distance_miles,competitor_seats,load_factor
JFK,LAX,2024-01,100,300,159,2475,1000,0.80
JFK,LAX,2024-02,150,300,159,2475,1000,0.85
JFK,LAX,2024-03,120,300,159,2475,1000,0.75
BOS,SEA,2024-01,80,400,200,2496,500,0.40
BOS,SEA,2024-02,88,400,200,2496,500,0.44
`

func testApp(t *testing.T) (*app, *storage.TestLogger) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.InputFile = filepath.Join(dir, "data", "route_monthly_performance.csv")
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.LogMaxSize = "10 * 1024 * 1024"
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0755))
	require.NoError(t, os.WriteFile(cfg.InputFile, []byte(inputCSV), 0644))

	tl := storage.NewTestLogger()
	return &app{
		cfg:      cfg,
		dcfg:     config.DefaultDataConfig(),
		logger:   tl.Logger,
		metrics:  datapush.NewMetrics(),
		notifier: datapush.NewNotifier("", 1, 0),
	}, tl
}

func TestRunFile(t *testing.T) {
	a, tl := testApp(t)

	var pushed int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pushed, 1)
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok"}`)
	}))
	defer srv.Close()
	a.notifier = datapush.NewNotifier(srv.URL, 1, time.Millisecond)

	b, err := a.runFile(context.Background(), a.cfg.InputFile, "run")
	require.NoError(t, err)
	assert.Len(t, b.Monthly, 5)
	assert.Len(t, b.Summary, 2)
	assert.Len(t, b.Fleet, 2)

	for _, name := range []string{a.cfg.Export.MonthlyFile, a.cfg.Export.SummaryFile, a.cfg.Export.FleetFile, a.cfg.Export.SQLitePath} {
		_, err := os.Stat(filepath.Join(a.cfg.OutputDir, name))
		assert.NoError(t, err, name)
	}

	assert.Equal(t, 2, tl.FilterMessage("top routes").Len())
	assert.Equal(t, 1, tl.FilterMessage("profit margin distribution").Len())
	assert.EqualValues(t, 1, atomic.LoadInt32(&pushed))
}

func TestRunFile_BadInput(t *testing.T) {
	a, _ := testApp(t)
	bad := filepath.Join(a.cfg.DataDir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("origin,destination\nJFK,LAX\n"), 0644))

	_, err := a.runFile(context.Background(), bad, "run")
	assert.Error(t, err)

	_, err = a.runFile(context.Background(), filepath.Join(a.cfg.DataDir, "missing.csv"), "run")
	assert.Error(t, err)
}

func TestQueryCmd(t *testing.T) {
	a, _ := testApp(t)
	_, err := a.runFile(context.Background(), a.cfg.InputFile, "run")
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := a.queryCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"profit_by_route"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "total_profit")
	assert.Contains(t, out.String(), "JFK-LAX")
	assert.Contains(t, out.String(), "BOS-SEA")
}

func TestRenderTable(t *testing.T) {
	var out bytes.Buffer
	err := renderTable(&out, &datapush.QueryResult{
		Columns: []string{"route", "months", "score"},
		Rows:    [][]interface{}{{"JFK-LAX", int64(3), 0.8}, {"MCO-PVD", int64(1), nil}},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "JFK-LAX")
	assert.Contains(t, out.String(), "0.8000")
	assert.Equal(t, "", formatValue(nil))
}

type stubMail struct{ emails []*email.Email }

func (s *stubMail) Connect() error { return nil }
func (s *stubMail) Disconnect() {}
func (s *stubMail) FetchUnreadEmails() ([]*email.Email, error) { return s.emails, nil }

func TestCheckMail(t *testing.T) {
	a, tl := testApp(t)
	mail := &email.Email{
		UID:         42,
		Subject:     "route performance 2024-03",
		Date:        time.Now(),
		Attachments: []*email.Attachment{{Filename: "march.csv", Content: []byte(inputCSV)}},
	}
	handler := email.NewAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir, a.logger)
	dfw := &email.DataFrameWrapper{}

	require.NoError(t, a.checkMail(context.Background(), &stubMail{emails: []*email.Email{mail}}, handler, dfw))
	assert.True(t, handler.IsProcessed(42))
	assert.Equal(t, "march.csv", dfw.Source())
	_, err := os.Stat(filepath.Join(a.cfg.DataDir, "march.csv"))
	assert.NoError(t, err)
	assert.Equal(t, 1, tl.FilterMessage("pipeline finished").Len())

	// 同一封邮件不会再跑一次
	require.NoError(t, a.checkMail(context.Background(), &stubMail{emails: []*email.Email{mail}}, handler, dfw))
	assert.Equal(t, 1, tl.FilterMessage("pipeline finished").Len())
}

func TestWebUI(t *testing.T) {
	a, _ := testApp(t)
	_, err := a.runFile(context.Background(), a.cfg.InputFile, "run")
	require.NoError(t, err)

	srv := httptest.NewServer(a.newWebUI())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "routeplan_runs_total")

	resp, err = http.Get(srv.URL + "/api/queries/profit_by_route")
	require.NoError(t, err)
	var res datapush.QueryResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, res.Rows, 2)
	assert.Contains(t, res.Columns, "route")

	resp, err = http.Get(srv.URL + "/api/queries/drop_table")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRootCmd_QueryList(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config-dir", dir, "--log-file", filepath.Join(dir, "app.log"), "query", "--list"})

	require.NoError(t, root.Execute())
	names := strings.Fields(out.String())
	assert.Equal(t, datapush.QueryNames(), names)
}
