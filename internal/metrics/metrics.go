// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess      = "success"
	LoginFailure      = "failure"
	LoginInvalidState = "invalid_state"
)

// トークン検証結果のラベル値
const (
	VerificationValid   = "valid"
	VerificationInvalid = "invalid"
	VerificationError   = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、HTTPミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(result string)
	RecordTokenVerification(result string)
	RecordTokenRevoked()
	RecordTokensPurged(count int64)
	RecordExchangeLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	tokensRevoked   prometheus.Counter
	tokensPurged    prometheus.Counter
	exchangeLatency prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_logins_total",
			Help: "OAuthログインの結果別件数",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_token_verifications_total",
			Help: "Bearerトークン検証の結果別件数",
		}, []string{"result"}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockflow_tokens_revoked_total",
			Help: "ログアウトで失効したトークンの合計数",
		}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockflow_tokens_purged_total",
			Help: "有効期限切れで削除されたトークンの合計数",
		}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockflow_oauth_exchange_seconds",
			Help:    "IdPとの認可コード交換のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.verifications,
		c.tokensRevoked,
		c.tokensPurged,
		c.exchangeLatency,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordTokenVerification はトークン検証結果を記録する。
func (c *Collector) RecordTokenVerification(result string) {
	c.verifications.WithLabelValues(result).Inc()
}

// RecordTokenRevoked はトークン失効を記録する。
func (c *Collector) RecordTokenRevoked() {
	c.tokensRevoked.Inc()
}

// RecordTokensPurged は期限切れトークンの削除件数を記録する。
func (c *Collector) RecordTokensPurged(count int64) {
	c.tokensPurged.Add(float64(count))
}

// RecordExchangeLatency は認可コード交換のレイテンシを記録する。
func (c *Collector) RecordExchangeLatency(duration time.Duration) {
	c.exchangeLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordLogin(string)                  {}
func (NopCollector) RecordTokenVerification(string)      {}
func (NopCollector) RecordTokenRevoked()                 {}
func (NopCollector) RecordTokensPurged(int64)            {}
func (NopCollector) RecordExchangeLatency(time.Duration) {}
func (NopCollector) RecordHTTPStatus(int)                {}

// Handler は/metricsで公開するPrometheusスクレイプ用ハンドラーを返す。
// 収集中のエラーはHTTPエラーにせず、取得できたメトリクスのみを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
