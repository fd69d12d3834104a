package datapush

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 批处理运行指标
type Metrics struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	rows     prometheus.Gauge
	routes   prometheus.Gauge
	unmapped prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routeplan_runs_total",
				Help: "Total number of batch runs",
			},
			[]string{"trigger", "status"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "routeplan_run_duration_seconds",
			Help:    "Batch run duration",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routeplan_monthly_rows",
			Help: "Route-month rows in the last successful run",
		}),
		routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routeplan_routes",
			Help: "Distinct routes in the last successful run",
		}),
		unmapped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routeplan_unmapped_rows",
			Help: "Rows without an aircraft assignment in the last successful run",
		}),
	}
	m.registry.MustRegister(m.runs, m.duration, m.rows, m.routes, m.unmapped)
	return m
}

// Observe 记录一次运行. b为nil表示失败.
func (m *Metrics) Observe(trigger string, b *Bundle, err error) {
	if m == nil {
		return
	}
	if err != nil || b == nil {
		m.runs.WithLabelValues(trigger, "failed").Inc()
		return
	}
	m.runs.WithLabelValues(trigger, "ok").Inc()
	m.rows.Set(float64(len(b.Monthly)))
	m.routes.Set(float64(len(b.Summary)))
	if b.Result != nil {
		m.duration.Observe(b.Result.Elapsed.Seconds())
		m.unmapped.Set(float64(b.Result.UnmappedRows))
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
