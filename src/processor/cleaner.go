package processor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hkagei/jetblue-route-planning/src/utils"
)

// Cleaner 第一道工序: 列名去空格、month转日期、可转数值的列转为数值
type Cleaner struct {
	Required []string
}

func NewCleaner() *Cleaner {
	return &Cleaner{Required: RequiredColumns}
}

func (c *Cleaner) Name() string { return "clean" }

func (c *Cleaner) Process(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, fmt.Errorf("clean: %w", df.Err)
	}

	// 1. 列名去除首尾空格
	cols := make([]series.Series, 0, df.Ncol())
	for _, name := range df.Names() {
		s := df.Col(name)
		s.Name = strings.TrimSpace(name)
		cols = append(cols, s)
	}
	if len(cols) == 0 {
		return df, ErrEmptyTable
	}
	out := dataframe.New(cols...)

	if missing := utils.MissingColumns(out, c.Required...); len(missing) > 0 {
		return out, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	// 2. 标准化month
	if utils.HasColumn(out, ColMonth) {
		months, err := normalizeMonths(out.Col(ColMonth))
		if err != nil {
			return out, err
		}
		out = out.Mutate(months)
	}

	// 3. 数值列转换, 失败则保持原样
	for _, name := range out.Names() {
		if name == ColMonth {
			continue
		}
		col := out.Col(name)
		if col.Type() != series.String {
			continue
		}
		if converted, ok := coerceNumeric(col); ok {
			out = out.Mutate(converted)
		}
	}

	return out, out.Err
}

func normalizeMonths(col series.Series) (series.Series, error) {
	recs := col.Records()
	for i, r := range recs {
		t, err := utils.ParseMonth(r)
		if err != nil {
			return col, fmt.Errorf("%w: row %d: %v", ErrInvalidMonth, i, err)
		}
		recs[i] = t.Format(MonthLayout)
	}
	return series.New(recs, series.String, col.Name), nil
}

// coerceNumeric 整列都能解析为数值时才转换. 全为整数且无缺失时为Int, 否则为Float.
func coerceNumeric(col series.Series) (series.Series, bool) {
	recs := col.Records()
	floats := make([]float64, len(recs))
	integral := true

	for i, r := range recs {
		r = strings.TrimSpace(r)
		if r == "" || r == utils.NA {
			floats[i] = math.NaN()
			integral = false
			continue
		}
		f, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return col, false
		}
		if _, err := strconv.Atoi(r); err != nil {
			integral = false
		}
		floats[i] = f
	}

	if integral {
		ints := make([]int, len(floats))
		for i, f := range floats {
			ints[i] = int(f)
		}
		return series.New(ints, series.Int, col.Name), true
	}
	return series.New(floats, series.Float, col.Name), true
}
