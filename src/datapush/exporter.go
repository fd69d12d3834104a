package datapush

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/hkagei/jetblue-route-planning/src/datasource/file"
	"github.com/hkagei/jetblue-route-planning/src/models"
	"github.com/hkagei/jetblue-route-planning/src/processor"
	"github.com/hkagei/jetblue-route-planning/src/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Bundle 一次运行的全部导出内容
type Bundle struct {
	RunID     string
	Source    string
	StartedAt time.Time
	Result    *processor.Result

	Monthly []models.RouteMonthRecord
	Summary []models.RouteSummary
	Fleet   []models.FleetSummary
}

// NewBundle 把流水线输出转换为导出行
func NewBundle(res *processor.Result, source string, startedAt time.Time) (*Bundle, error) {
	monthly, err := MonthlyRecords(res.Monthly)
	if err != nil {
		return nil, fmt.Errorf("monthly records: %w", err)
	}
	summary, err := RouteSummaries(res.RouteSummary)
	if err != nil {
		return nil, fmt.Errorf("route summaries: %w", err)
	}
	fleet, err := FleetSummaries(res.FleetSummary)
	if err != nil {
		return nil, fmt.Errorf("fleet summaries: %w", err)
	}
	return &Bundle{
		RunID:     uuid.New().String(),
		Source:    source,
		StartedAt: startedAt,
		Result:    res,
		Monthly:   monthly,
		Summary:   summary,
		Fleet:     fleet,
	}, nil
}

// Exporter 并行写CSV、xlsx工作簿和SQLite, 未配置的目标跳过
type Exporter struct {
	dir    string
	csv    *CSVExporter
	excel  *ExcelExporter
	sqlite string
	logger *storage.Logger
}

func NewExporter(cfg *config.Config, logger *storage.Logger) *Exporter {
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	out := func(name string) string {
		if name == "" {
			return ""
		}
		return filepath.Join(cfg.OutputDir, name)
	}
	e := &Exporter{
		dir: cfg.OutputDir,
		csv: &CSVExporter{
			MonthlyPath: out(cfg.Export.MonthlyFile),
			SummaryPath: out(cfg.Export.SummaryFile),
			FleetPath:   out(cfg.Export.FleetFile),
		},
		sqlite: out(cfg.Export.SQLitePath),
		logger: logger,
	}
	if cfg.Export.Workbook != "" {
		e.excel = &ExcelExporter{Path: out(cfg.Export.Workbook)}
	}
	return e
}

// Export 三个目标写不同的文件, 任一失败即返回第一个错误
func (e *Exporter) Export(b *Bundle) error {
	log := e.logger.With(zap.String("run_id", b.RunID))

	if e.dir != "" {
		if err := file.EnsureDir(e.dir); err != nil {
			return err
		}
	}

	var g errgroup.Group

	if e.csv.MonthlyPath != "" {
		g.Go(func() error {
			if err := e.csv.Export(b); err != nil {
				return fmt.Errorf("csv export: %w", err)
			}
			log.Info("csv exported", zap.String("path", e.csv.MonthlyPath), zap.Int("rows", len(b.Monthly)))
			return nil
		})
	}

	if e.excel != nil {
		g.Go(func() error {
			if err := e.excel.Export(b.Result); err != nil {
				return fmt.Errorf("xlsx export: %w", err)
			}
			log.Info("workbook exported", zap.String("path", e.excel.Path))
			return nil
		})
	}

	if e.sqlite != "" {
		g.Go(func() error {
			store, err := OpenStore(e.sqlite)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(b); err != nil {
				return fmt.Errorf("sqlite export: %w", err)
			}
			log.Info("sqlite view refreshed", zap.String("path", e.sqlite), zap.String("table", TableRoutePerformance))
			return nil
		})
	}

	return g.Wait()
}
