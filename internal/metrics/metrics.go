// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roofdispatch/roofdispatch/pkg/dispatcher"
	"github.com/roofdispatch/roofdispatch/pkg/stats"
)

const namespace = "roofdispatch"

// Metrics 应用指标，使用独立的注册表
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	batches       *prometheus.CounterVec
	placements    *prometheus.CounterVec
	unplaced      *prometheus.CounterVec
	disqualified  prometheus.Counter
	batchDuration *prometheus.HistogramVec

	geocodeLookups *prometheus.CounterVec

	unassigned *prometheus.GaugeVec
	gini       *prometheus.GaugeVec
}

// New 创建并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path"}),

		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_batches_total",
			Help:      "批量分配次数",
		}, []string{"mode"}),
		placements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_placements_total",
			Help:      "自动分配成功的任务数",
		}, []string{"mode"}),
		unplaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_unplaced_total",
			Help:      "留在队列中的任务数",
		}, []string{"mode"}),
		disqualified: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_disqualified_total",
			Help:      "因技能不符被取消资格的候选数",
		}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_batch_duration_seconds",
			Help:      "批量分配耗时",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"mode"}),

		geocodeLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_lookups_total",
			Help:      "坐标解析次数（按来源与结果）",
		}, []string{"source", "result"}),

		unassigned: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "day_unassigned_jobs",
			Help:      "当日待分配任务数",
		}, []string{"date"}),
		gini: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "day_workload_gini",
			Help:      "当日任务数基尼系数",
		}, []string{"date"}),
	}
}

// Handler 返回指标HTTP处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordBatch 记录批量分配结果，实现 dispatcher.Recorder
func (m *Metrics) RecordBatch(report *dispatcher.Report, duration time.Duration) {
	if report == nil {
		return
	}
	m.batches.WithLabelValues(report.Mode).Inc()
	m.placements.WithLabelValues(report.Mode).Add(float64(len(report.Placements)))
	m.unplaced.WithLabelValues(report.Mode).Add(float64(len(report.Unplaced)))
	m.disqualified.Add(float64(report.Disqualified))
	m.batchDuration.WithLabelValues(report.Mode).Observe(duration.Seconds())
}

// ObserveGeocode 记录坐标解析结果，实现 geocode.Observer
func (m *Metrics) ObserveGeocode(source string, ok bool) {
	result := "hit"
	if !ok {
		result = "miss"
	}
	m.geocodeLookups.WithLabelValues(source, result).Inc()
}

// RecordRequest 记录请求指标
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWorkload 记录当日负载
func (m *Metrics) RecordWorkload(w *stats.WorkloadMetrics) {
	if w == nil || w.Date == "" {
		return
	}
	m.unassigned.WithLabelValues(w.Date).Set(float64(w.Unassigned))
	m.gini.WithLabelValues(w.Date).Set(w.JobGini)
}
