// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// トークン検証の結果ラベル
const (
	TokenOutcomeValid            = "valid"
	TokenOutcomeMissing          = "missing"
	TokenOutcomeMalformed        = "malformed"
	TokenOutcomeExpired          = "expired"
	TokenOutcomeInvalidSignature = "invalid_signature"
	TokenOutcomeUnknownAccount   = "unknown_account"
	TokenOutcomeHeader           = "header"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアや認証サービスから利用する。
type MetricsCollector interface {
	RecordTokenValidation(outcome string)
	RecordLogin(method string, success bool)
	RecordSignup(provider string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	tokenValidations *prometheus.CounterVec
	logins           *prometheus.CounterVec
	signups          *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokenValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifemanager_token_validations_total",
			Help: "リクエストごとの資格情報検証の結果別件数",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifemanager_logins_total",
			Help: "ログイン方式・結果別のログイン試行数",
		}, []string{"method", "result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifemanager_signups_total",
			Help: "プロバイダー別の新規アカウント作成数",
		}, []string{"provider"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifemanager_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifemanager_request_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.tokenValidations,
		c.logins,
		c.signups,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordTokenValidation は資格情報検証の結果を記録する。
func (c *Collector) RecordTokenValidation(outcome string) {
	c.tokenValidations.WithLabelValues(outcome).Inc()
}

// RecordLogin はログイン試行を記録する。methodは "local" またはプロバイダー名。
func (c *Collector) RecordLogin(method string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(method, result).Inc()
}

// RecordSignup は新規アカウント作成を記録する。
func (c *Collector) RecordSignup(provider string) {
	c.signups.WithLabelValues(provider).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスを無効にする場合やテストで使う。
type Nop struct{}

func (Nop) RecordTokenValidation(string)        {}
func (Nop) RecordLogin(string, bool)            {}
func (Nop) RecordSignup(string)                 {}
func (Nop) RecordHTTPStatus(int)                {}
func (Nop) RecordRequestLatency(time.Duration) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
