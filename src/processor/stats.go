package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/hkagei/jetblue-route-planning/src/utils"
)

// Distribution 只统计已定义的值
type Distribution struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	P25   float64
	P50   float64
	P75   float64
	Max   float64
}

// Describe 样本标准差, 分位数线性插值
func Describe(vals []float64) Distribution {
	var xs []float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			xs = append(xs, v)
		}
	}
	d := Distribution{Count: len(xs)}
	if len(xs) == 0 {
		nan := math.NaN()
		d.Mean, d.Std, d.Min, d.P25, d.P50, d.P75, d.Max = nan, nan, nan, nan, nan, nan, nan
		return d
	}
	sort.Float64s(xs)

	var sum float64
	for _, x := range xs {
		sum += x
	}
	d.Mean = sum / float64(len(xs))

	d.Std = math.NaN()
	if len(xs) > 1 {
		var ss float64
		for _, x := range xs {
			ss += (x - d.Mean) * (x - d.Mean)
		}
		d.Std = math.Sqrt(ss / float64(len(xs)-1))
	}

	d.Min, d.Max = xs[0], xs[len(xs)-1]
	d.P25 = quantile(xs, 0.25)
	d.P50 = quantile(xs, 0.50)
	d.P75 = quantile(xs, 0.75)
	return d
}

func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// TopRoutes 按指定列降序取前n行, 未定义值排最后
func TopRoutes(summary dataframe.DataFrame, column string, n int) (dataframe.DataFrame, error) {
	if !utils.HasColumn(summary, column) {
		return summary, fmt.Errorf("%w: %s", ErrMissingColumn, column)
	}
	idx := utils.DescendingIndex(summary.Col(column).Float())
	if n > 0 && n < len(idx) {
		idx = idx[:n]
	}
	if len(idx) == 0 {
		return summary, nil
	}
	top := summary.Subset(idx)
	return top, top.Err
}
