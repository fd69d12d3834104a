package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func TestLoad_MissingFilesUseDefaults(t *testing.T) {
	cfg, dcfg, err := Load(t.TempDir(), "config.yaml", "dataconfig.yaml")
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.Email.CheckInterval))
	assert.Equal(t, CostPerPassenger, dcfg.Costs.Model)
	assert.Equal(t, ScoreWeightedBlend, dcfg.Scoring.Formula)
	assert.Len(t, dcfg.RouteFleet, 10)
	assert.Len(t, dcfg.AircraftSize, 4)

	aircraft, ok := dcfg.AircraftFor("JFK-LAX")
	require.True(t, ok)
	assert.Equal(t, "A321 Mint", aircraft)
	seats, ok := dcfg.SeatsFor(aircraft)
	require.True(t, ok)
	assert.Equal(t, 159, seats)

	_, ok = dcfg.AircraftFor("LAX-JFK")
	assert.False(t, ok)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
output_dir: out
email:
  check_interval: 30s
export:
  workbook: book.xlsx
`)
	writeFile(t, dir, "dataconfig.yaml", `
costs:
  model: per_seat_mile
  casm: 0.12
scoring:
  formula: growth_blend
`)

	cfg, dcfg, err := Load(dir, "config.yaml", "dataconfig.yaml")
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Email.CheckInterval))
	assert.Equal(t, "book.xlsx", cfg.Export.Workbook)
	assert.Equal(t, "route_summary.csv", cfg.Export.SummaryFile)
	assert.Equal(t, CostPerSeatMile, dcfg.Costs.Model)
	assert.InDelta(t, 0.12, dcfg.Costs.CASM, 1e-12)
	assert.InDelta(t, 65.0, dcfg.Costs.CostPerPax, 1e-12)
	assert.Equal(t, ScoreGrowthBlend, dcfg.Scoring.Formula)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ROUTEPLAN_OUTPUT_DIR", "/tmp/routeplan")
	t.Setenv("ROUTEPLAN_EMAIL_SERVER", "imap.test:993")
	t.Setenv("ROUTEPLAN_DATA_COSTS_MODEL", "per_seat_mile")

	cfg, dcfg, err := Load(t.TempDir(), "config.yaml", "dataconfig.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/routeplan", cfg.OutputDir)
	assert.Equal(t, "imap.test:993", cfg.Email.Server)
	assert.Equal(t, CostPerSeatMile, dcfg.Costs.Model)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "ROUTEPLAN_LOG_NAME=dotenv.log\nROUTEPLAN_EMAIL_USERNAME=ops@jetblue.test\n")
	t.Cleanup(func() {
		os.Unsetenv("ROUTEPLAN_LOG_NAME")
		os.Unsetenv("ROUTEPLAN_EMAIL_USERNAME")
	})
	// 已有的环境变量优先
	t.Setenv("ROUTEPLAN_EMAIL_USERNAME", "shell@jetblue.test")

	cfg, _, err := Load(dir, "config.yaml", "dataconfig.yaml")
	require.NoError(t, err)
	assert.Equal(t, "dotenv.log", cfg.LogName)
	assert.Equal(t, "shell@jetblue.test", cfg.Email.Username)
}

func TestLoad_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
output_dir: ""
webhook:
  url: not a url
`)

	_, _, err := Load(dir, "config.yaml", "dataconfig.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OutputDir")
	assert.Contains(t, err.Error(), "URL")
}

func TestLoad_InvalidDataConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dataconfig.yaml", `
costs:
  model: per_mile
scoring:
  margin_weight: 0.9
`)

	_, _, err := Load(dir, "config.yaml", "dataconfig.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cost model")
	assert.Contains(t, err.Error(), "weights must sum to 1")
}

func TestValidate_UnknownAircraft(t *testing.T) {
	dcfg := DefaultDataConfig()
	dcfg.SetRouteFleet("BOS-LHR", "A321LR")

	err := dcfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOS-LHR")
}

func TestValidate_NonPositiveSeats(t *testing.T) {
	dcfg := DefaultDataConfig()
	dcfg.AircraftSize["A220"] = 0

	require.Error(t, dcfg.Validate())
}
