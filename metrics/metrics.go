// Package metrics 定义 Prometheus 指标（promauto 注册到默认 registry）。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AutocompleteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_autocomplete_requests_total",
			Help: "Autocomplete requests by match tier",
		},
		[]string{"tier"}, // none, prefix, substring, partial
	)

	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_recommend_requests_total",
			Help: "Recommendation requests by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogrec_recommend_duration_seconds",
			Help:    "Recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	DatasetRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_dataset_records_total",
			Help: "Records read from input files, by source and result",
		},
		[]string{"source", "result"}, // result: read, skipped
	)

	PipelineNodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogrec_pipeline_node_duration_seconds",
			Help:    "Time spent in each pipeline node",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"node"},
	)

	RecallSourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_recall_source_failures_total",
			Help: "Recall sources dropped from a fanout because they failed or timed out",
		},
		[]string{"source"},
	)

	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogrec_snapshot_build_duration_seconds",
			Help:    "Time to load data and fit all models",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	SnapshotBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_snapshot_builds_total",
			Help: "Snapshot builds by outcome",
		},
		[]string{"status"},
	)

	SnapshotSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogrec_snapshot_size",
			Help: "Entities in the serving snapshot",
		},
		[]string{"entity"}, // words, products, users, titles
	)

	SnapshotTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogrec_snapshot_built_timestamp_seconds",
			Help: "Unix time the serving snapshot was built",
		},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_cache_hits_total",
			Help: "Result cache hits",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_cache_misses_total",
			Help: "Result cache misses",
		},
		[]string{"kind"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_cache_errors_total",
			Help: "Result cache backend errors (requests still served)",
		},
		[]string{"op"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogrec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogrec_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// ObserveRecommend 记录一次推荐请求的结果与耗时。
func ObserveRecommend(kind string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	RecommendRequests.WithLabelValues(kind, status).Inc()
	RecommendDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ObserveDataset 记录一次加载的读取与跳过条数。
func ObserveDataset(source string, read, skipped int) {
	DatasetRecords.WithLabelValues(source, "read").Add(float64(read))
	DatasetRecords.WithLabelValues(source, "skipped").Add(float64(skipped))
}
