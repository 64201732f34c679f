// Package metrics 提供推荐链路的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moviematch"

var (
	// NodeDuration 记录每个 Pipeline Node 的耗时。
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_node_duration_seconds",
			Help:      "Duration of pipeline node execution in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"kind", "node", "status"},
	)

	// ExpansionTotal 统计扩展决策：activated / skipped / degraded。
	ExpansionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_total",
			Help:      "Expansion decisions by outcome",
		},
		[]string{"outcome"},
	)

	// RankFallbackTotal 统计排序全局兜底次数。
	RankFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_fallback_total",
			Help:      "Number of ranking batches that fell back to rating order",
		},
	)

	// PersonalizeTotal 统计个性化入口走的路径：cold_start / similar / degraded。
	PersonalizeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "personalize_total",
			Help:      "Personalized recommendation requests by path",
		},
		[]string{"path"},
	)

	// TrainDuration 记录重训耗时。
	TrainDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "train_duration_seconds",
			Help:      "Duration of snapshot training in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// CatalogSize 当前发布快照的目录大小。
	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_size",
			Help:      "Number of movies in the published snapshot",
		},
	)

	// UpstreamErrorsTotal 统计协作方查询失败。
	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Collaborator query failures by operation",
		},
		[]string{"operation"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveNode 记录一次 Node 执行。
func ObserveNode(kind, node string, d time.Duration, err error) {
	NodeDuration.WithLabelValues(kind, node, status(err)).Observe(d.Seconds())
}

// RecordExpansion 记录一次扩展决策。
func RecordExpansion(outcome string) {
	ExpansionTotal.WithLabelValues(outcome).Inc()
}

// RecordTrain 记录一次重训。
func RecordTrain(d time.Duration, size int, err error) {
	TrainDuration.WithLabelValues(status(err)).Observe(d.Seconds())
	if err == nil {
		CatalogSize.Set(float64(size))
	}
}

// RecordUpstreamError 记录一次协作方失败。
func RecordUpstreamError(operation string) {
	UpstreamErrorsTotal.WithLabelValues(operation).Inc()
}
