// reader.go
package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// Number 匹配Excel日期序列号
const Number string = `^[0-9]+(\.[0-9]+)?$`

var serialRe = regexp.MustCompile(Number)

// 支持的输入文件扩展名
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
)

// FileInfo 目录中的候选输入文件
type FileInfo struct {
	Name     string
	FullPath string
	ModTime  time.Time
}

// Supported 是否为可读取的输入文件
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ExtCSV || ext == ExtXLSX
}

// Load 按扩展名读取CSV或xlsx, 所有列都以字符串读入, 类型转换交给清洗工序
func Load(path, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtCSV:
		f, err := os.Open(path)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ExtXLSX:
		return ReadXLSX(path, sheetName, headerRow)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("unsupported input file %s", path)
	}
}

// LoadBytes 邮件附件等内存中的数据
func LoadBytes(name string, data []byte, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtCSV:
		return ReadCSV(bytes.NewReader(data))
	case ExtXLSX:
		xlFile, err := xlsx.OpenBinary(data)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("xlsx open binary: %w", err)
		}
		return sheetToDataFrame(xlFile, sheetName, headerRow)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("unsupported attachment %s", name)
	}
}

// ReadCSV 首行为表头
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, fmt.Errorf("read csv: %w", df.Err)
	}
	return df, nil
}

// ReadXLSX headerRow 从0开始, 表头之后的行为数据
func ReadXLSX(filePath, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName, headerRow)
}

func sheetToDataFrame(xlFile *xlsx.File, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	// 2. 获取工作表, 未指定时取第一个
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("sheet %q not found", sheetName)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet, headerRow)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, error) {
	if headerRow < 0 || len(sheet.Rows) <= headerRow {
		return dataframe.DataFrame{}, fmt.Errorf("sheet %s: header row %d out of range", sheet.Name, headerRow)
	}

	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("sheet %s: empty header row", sheet.Name)
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-headerRow-1)
	}

	// 填充数据, 跳过全空的行
	for _, row := range sheet.Rows[headerRow+1:] {
		if isBlankRow(row) {
			continue
		}
		for i := range headers {
			v := ""
			if i < len(row.Cells) {
				v = row.Cells[i].Value
			}
			columns[i] = append(columns[i], v)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		if isDateColumn(colName) {
			for j, v := range columns[i] {
				columns[i][j] = excelToTime(v)
			}
		}
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	return df, df.Err
}

func isBlankRow(row *xlsx.Row) bool {
	for _, c := range row.Cells {
		if strings.TrimSpace(c.Value) != "" {
			return false
		}
	}
	return true
}

// 辅助函数：可能是日期类型的列
func isDateColumn(col string) bool {
	col = strings.ToLower(col)
	for _, kw := range []string{"month", "date", "日期", "月份"} {
		if strings.Contains(col, kw) {
			return true
		}
	}
	return false
}

// excelToTime Excel日期序列号转 "2006-01-02", 其他内容原样返回
func excelToTime(v string) string {
	v = strings.TrimSpace(v)
	if !serialRe.MatchString(v) {
		return v
	}
	excelDays, err := strconv.ParseFloat(v, 64)
	if err != nil || excelDays < 1 {
		return v
	}

	// 以1899-12-30为基准已抵消了Excel的1900年闰年错误
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(excelDays)).Format("2006-01-02")
}

// EnsureDir 确保目录存在
func EnsureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}

// FindLatest 查找目录中文件名包含keyword的最新输入文件
func FindLatest(dir, keyword string) (*FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var latest *FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		if keyword != "" && !strings.Contains(entry.Name(), keyword) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.ModTime) {
			latest = &FileInfo{
				Name:     info.Name(),
				FullPath: filepath.Join(dir, info.Name()),
				ModTime:  info.ModTime(),
			}
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("no matching input files found in %s", dir)
	}
	return latest, nil
}

// SetupSignalHandler 收到 SIGINT/SIGTERM 时取消上下文
func SetupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()
}
