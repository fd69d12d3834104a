package datapush

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/hkagei/jetblue-route-planning/src/processor"
	"github.com/xuri/excelize/v2"
)

// 工作簿中的工作表名
const (
	SheetMonthly = "route_monthly"
	SheetSummary = "route_summary"
	SheetFleet   = "fleet_summary"
)

// ExcelExporter 把三张表写入同一个xlsx工作簿
type ExcelExporter struct {
	Path string
}

func (e *ExcelExporter) Export(res *processor.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	// 默认的Sheet1改名为第一张表
	if err := f.SetSheetName("Sheet1", SheetMonthly); err != nil {
		return err
	}
	if err := writeSheet(f, SheetMonthly, res.Monthly); err != nil {
		return err
	}
	for _, s := range []struct {
		name string
		df   dataframe.DataFrame
	}{
		{SheetSummary, res.RouteSummary},
		{SheetFleet, res.FleetSummary},
	} {
		if _, err := f.NewSheet(s.name); err != nil {
			return err
		}
		if err := writeSheet(f, s.name, s.df); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(e.Path), 0755); err != nil {
		return err
	}
	if err := f.SaveAs(e.Path); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// writeSheet 首行写列名, 未定义的值留空
func writeSheet(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}

	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			el := col.Elem(rowIdx)
			if el.IsNA() {
				continue
			}
			val := el.Val()
			if v, ok := val.(float64); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return err
			}
		}
	}
	return nil
}
