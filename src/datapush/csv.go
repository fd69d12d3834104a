package datapush

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hkagei/jetblue-route-planning/src/models"
	"github.com/jszwec/csvutil"
)

// WriteCSV 按结构体的csv标签写表头和数据, nil指针写为空单元格
func WriteCSV[T any](w io.Writer, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		// 没有数据时也写表头
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return fmt.Errorf("failed to encode csv header: %w", err)
		}
	} else if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode csv rows: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV 读回导出的文件, 空单元格解码为nil
func ReadCSV[T any](r io.Reader) ([]T, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to create csv decoder: %w", err)
	}
	var rows []T
	if err := dec.Decode(&rows); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode csv: %w", err)
	}
	return rows, nil
}

func writeCSVFile[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// CSVExporter 三张表分别写一个CSV文件
type CSVExporter struct {
	MonthlyPath string
	SummaryPath string
	FleetPath   string
}

func (e *CSVExporter) Export(b *Bundle) error {
	if err := writeCSVFile(e.MonthlyPath, b.Monthly); err != nil {
		return err
	}
	if e.SummaryPath != "" {
		if err := writeCSVFile(e.SummaryPath, b.Summary); err != nil {
			return err
		}
	}
	if e.FleetPath != "" {
		if err := writeCSVFile(e.FleetPath, b.Fleet); err != nil {
			return err
		}
	}
	return nil
}

// ReadMonthlyCSV 读取已导出的月度宽表
func ReadMonthlyCSV(path string) ([]models.RouteMonthRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV[models.RouteMonthRecord](f)
}
