// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordSyncRequest(entity string, operation string)
	RecordBatchApplied(entity string, count int)
	RecordBatchFailed(entity string, count int)
	RecordBatchSize(entity string, size int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordRetentionDeleted(kind string, count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncRequests     *prometheus.CounterVec
	batchApplied     *prometheus.CounterVec
	batchFailed      *prometheus.CounterVec
	batchSize        *prometheus.HistogramVec
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	retentionDeleted *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysync_sync_requests_total",
			Help: "エンティティ・操作別の同期リクエスト数",
		}, []string{"entity", "operation"}),
		batchApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysync_batch_applied_total",
			Help: "バッチ書き込みで適用されたアイテムの合計数",
		}, []string{"entity"}),
		batchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysync_batch_failed_total",
			Help: "バッチ書き込みで失敗したアイテムの合計数",
		}, []string{"entity"}),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studysync_batch_size",
			Help:    "バッチ書き込みのアイテム数",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}, []string{"entity"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysync_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studysync_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		retentionDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysync_retention_deleted_total",
			Help: "保持期間ワーカーが削除したレコードの合計数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.syncRequests,
		c.batchApplied,
		c.batchFailed,
		c.batchSize,
		c.httpStatus,
		c.requestLatency,
		c.retentionDeleted,
	)

	return c
}

// RecordSyncRequest は同期リクエストを記録する。
func (c *Collector) RecordSyncRequest(entity string, operation string) {
	c.syncRequests.WithLabelValues(entity, operation).Inc()
}

// RecordBatchApplied はバッチ適用成功数を記録する。
func (c *Collector) RecordBatchApplied(entity string, count int) {
	c.batchApplied.WithLabelValues(entity).Add(float64(count))
}

// RecordBatchFailed はバッチ適用失敗数を記録する。
func (c *Collector) RecordBatchFailed(entity string, count int) {
	c.batchFailed.WithLabelValues(entity).Add(float64(count))
}

// RecordBatchSize はバッチのアイテム数を記録する。
func (c *Collector) RecordBatchSize(entity string, size int) {
	c.batchSize.WithLabelValues(entity).Observe(float64(size))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRetentionDeleted は保持期間ワーカーの削除数を記録する。
func (c *Collector) RecordRetentionDeleted(kind string, count int) {
	c.retentionDeleted.WithLabelValues(kind).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
