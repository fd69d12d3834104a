package utils

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// NA gota中字符串 "NaN" 会被识别为缺失值
const NA = "NaN"

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// HasColumn 判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// MissingColumns 返回df中不存在的列
func MissingColumns(df dataframe.DataFrame, names ...string) []string {
	var missing []string
	for _, n := range names {
		if !HasColumn(df, n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Floats 读取数值列, 缺失值为NaN. 列不存在时全部为NaN.
func Floats(df dataframe.DataFrame, name string) []float64 {
	if !HasColumn(df, name) {
		out := make([]float64, df.Nrow())
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return df.Col(name).Float()
}

// Strings 读取字符串列, 缺失值返回 ok=false
func Strings(df dataframe.DataFrame, name string) (vals []string, ok []bool) {
	col := df.Col(name)
	vals = make([]string, col.Len())
	ok = make([]bool, col.Len())
	for i := 0; i < col.Len(); i++ {
		el := col.Elem(i)
		if el.IsNA() {
			continue
		}
		vals[i] = el.String()
		ok[i] = true
	}
	return vals, ok
}

// FloatSeries NaN 表示未定义
func FloatSeries(name string, vals []float64) series.Series {
	return series.New(vals, series.Float, name)
}

// NullableIntSeries valid[i]为false的位置写入缺失值
func NullableIntSeries(name string, vals []int, valid []bool) series.Series {
	recs := make([]string, len(vals))
	for i, v := range vals {
		if !valid[i] {
			recs[i] = NA
			continue
		}
		recs[i] = strconv.Itoa(v)
	}
	return series.New(recs, series.Int, name)
}

// NullableStringSeries valid[i]为false的位置写入缺失值
func NullableStringSeries(name string, vals []string, valid []bool) series.Series {
	recs := make([]string, len(vals))
	for i, v := range vals {
		if !valid[i] {
			recs[i] = NA
			continue
		}
		recs[i] = v
	}
	return series.New(recs, series.String, name)
}

// GroupIndex 按key单遍分组, 组的顺序为首次出现顺序
func GroupIndex(keys []string) (order []string, groups map[string][]int) {
	groups = make(map[string][]int)
	for i, k := range keys {
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	return order, groups
}

// MeanDefined 只对非NaN值求均值, 没有可用值时返回NaN
func MeanDefined(vals []float64, idx []int) float64 {
	var sum float64
	n := 0
	for _, i := range idx {
		if math.IsNaN(vals[i]) {
			continue
		}
		sum += vals[i]
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// SumDefined 跳过NaN求和
func SumDefined(vals []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		if !math.IsNaN(vals[i]) {
			sum += vals[i]
		}
	}
	return sum
}

// DescendingIndex 按值降序排列的行号, NaN排在最后
func DescendingIndex(vals []float64) []int {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := vals[idx[a]], vals[idx[b]]
		if math.IsNaN(vb) {
			return !math.IsNaN(va)
		}
		if math.IsNaN(va) {
			return false
		}
		return va > vb
	})
	return idx
}

// ArrangeBy 按多列字符串值升序稳定排序, 前面的列优先
func ArrangeBy(df dataframe.DataFrame, cols ...string) dataframe.DataFrame {
	if df.Nrow() < 2 {
		return df
	}
	keys := make([][]string, len(cols))
	for j, c := range cols {
		keys[j] = df.Col(c).Records()
	}
	return df.Subset(SortedIndex(keys...))
}

// SortedIndex 按多组键升序排列的行号, 键相同时保持原顺序
func SortedIndex(keys ...[]string) []int {
	n := 0
	if len(keys) > 0 {
		n = len(keys[0])
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for _, k := range keys {
			if va, vb := k[idx[a]], k[idx[b]]; va != vb {
				return va < vb
			}
		}
		return false
	})
	return idx
}

var monthLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006-01",
	"2006/01",
	"01/02/2006",
	"1/2/2006",
	"Jan 2006",
	"January 2006",
}

// ParseMonth 尝试多种日期格式
func ParseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
