// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 上流取得の結果ラベル
const (
	FetchFresh       = "fresh"       // 上流から新規取得
	FetchCached      = "cached"      // 有効期限内のキャッシュを返却
	FetchRevalidated = "revalidated" // 304で再検証
	FetchStale       = "stale"       // 取得失敗のため期限切れキャッシュを返却
	FetchFailed      = "failed"      // 取得失敗でキャッシュなし
)

// MetricsCollector はメトリクス収集のインターフェース。
// 上流取得、リマインダー、メニュー表示から利用する。
type MetricsCollector interface {
	RecordUpstreamFetch(provider, result string)
	RecordUpstreamStatus(provider string, statusCode int)
	RecordUpstreamLatency(provider string, duration time.Duration)
	RecordNotification(success bool)
	RecordMenuView(status string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamFetch   *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	notifySent      prometheus.Counter
	notifyFail      prometheus.Counter
	menuViews       *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "menuman_upstream_fetch_total",
			Help: "上流メニュー取得の結果別の合計数",
		}, []string{"provider", "result"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "menuman_upstream_http_status_total",
			Help: "上流HTTPステータスコード別のレスポンス数",
		}, []string{"provider", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "menuman_upstream_latency_seconds",
			Help:    "上流メニュー取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		notifySent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "menuman_notifications_sent_total",
			Help: "送信したリマインダー通知の合計数",
		}),
		notifyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "menuman_notifications_failed_total",
			Help: "送信に失敗したリマインダー通知の合計数",
		}),
		menuViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "menuman_menu_views_total",
			Help: "メニュー表示の結果状態別の合計数",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.upstreamFetch,
		c.upstreamStatus,
		c.upstreamLatency,
		c.notifySent,
		c.notifyFail,
		c.menuViews,
	)

	return c
}

// RecordUpstreamFetch は上流取得の結果を記録する。
func (c *Collector) RecordUpstreamFetch(provider, result string) {
	c.upstreamFetch.WithLabelValues(provider, result).Inc()
}

// RecordUpstreamStatus は上流のHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(provider string, statusCode int) {
	c.upstreamStatus.WithLabelValues(provider, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は上流取得のレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(provider string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordNotification は通知送信の成否を記録する。
func (c *Collector) RecordNotification(success bool) {
	if success {
		c.notifySent.Inc()
		return
	}
	c.notifyFail.Inc()
}

// RecordMenuView はメニュー表示の結果状態を記録する。
func (c *Collector) RecordMenuView(status string) {
	c.menuViews.WithLabelValues(status).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordUpstreamFetch(string, string) {}
func (Nop) RecordUpstreamStatus(string, int) {}
func (Nop) RecordUpstreamLatency(string, time.Duration) {}
func (Nop) RecordNotification(bool) {}
func (Nop) RecordMenuView(string) {}
