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
// フィードサービスとHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordCacheLookup(status string)
	RecordCacheWriteFailure()
	RecordAssembleLatency(duration time.Duration)
	RecordAssembleFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheLookups    *prometheus.CounterVec
	cacheWriteFail  prometheus.Counter
	assembleLatency prometheus.Histogram
	assembleFail    prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "followfeed_feed_cache_lookups_total",
			Help: "フィードキャッシュ参照の結果別件数",
		}, []string{"result"}),
		cacheWriteFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "followfeed_feed_cache_write_fail_total",
			Help: "フィードキャッシュへの書き戻し失敗の合計数",
		}),
		assembleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "followfeed_feed_assemble_latency_seconds",
			Help:    "フィード組み立てのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		assembleFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "followfeed_feed_assemble_fail_total",
			Help: "フィード組み立て失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "followfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.cacheLookups,
		c.cacheWriteFail,
		c.assembleLatency,
		c.assembleFail,
		c.httpStatus,
	)

	return c
}

// RecordCacheLookup はキャッシュ参照結果（hit/miss/unavailable）を記録する。
func (c *Collector) RecordCacheLookup(status string) {
	c.cacheLookups.WithLabelValues(status).Inc()
}

// RecordCacheWriteFailure は書き戻し失敗を記録する。
func (c *Collector) RecordCacheWriteFailure() {
	c.cacheWriteFail.Inc()
}

// RecordAssembleLatency はフィード組み立てのレイテンシを記録する。
func (c *Collector) RecordAssembleLatency(duration time.Duration) {
	c.assembleLatency.Observe(duration.Seconds())
}

// RecordAssembleFailure はフィード組み立て失敗を記録する。
func (c *Collector) RecordAssembleFailure() {
	c.assembleFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordCacheLookup(string)            {}
func (Nop) RecordCacheWriteFailure()            {}
func (Nop) RecordAssembleLatency(time.Duration) {}
func (Nop) RecordAssembleFailure()              {}
func (Nop) RecordHTTPStatus(int)                {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
