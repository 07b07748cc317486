// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPRecorder はHTTPリクエストの計測インターフェース。ミドルウェアから利用する。
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// TaskRecorder はタスク操作の計測インターフェース。タスクサービスから利用する。
type TaskRecorder interface {
	RecordTaskCreated()
	RecordTaskUpdated()
	RecordTaskDeleted()
}

// AuthRecorder は認証イベントの計測インターフェース。認証サービスから利用する。
type AuthRecorder interface {
	RecordLogin(success bool)
	RecordSignup(success bool)
	RecordTokenRevoked()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	taskOps      *prometheus.CounterVec
	logins       *prometheus.CounterVec
	signups      *prometheus.CounterVec
	revocations  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_http_requests_total",
			Help: "HTTPリクエスト数（メソッド・ルート・ステータス別）",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		taskOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_task_operations_total",
			Help: "タスクの作成・更新・削除の合計数",
		}, []string{"operation"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_logins_total",
			Help: "ログイン試行数（結果別）",
		}, []string{"result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_signups_total",
			Help: "サインアップ試行数（結果別）",
		}, []string{"result"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_tokens_revoked_total",
			Help: "ログアウトにより失効したトークン数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.taskOps,
		c.logins,
		c.signups,
		c.revocations,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターン（/tasks/{id}等）を渡し、ラベルの濃度を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTaskCreated はタスク作成を記録する。
func (c *Collector) RecordTaskCreated() {
	c.taskOps.WithLabelValues("create").Inc()
}

// RecordTaskUpdated はタスク更新を記録する。
func (c *Collector) RecordTaskUpdated() {
	c.taskOps.WithLabelValues("update").Inc()
}

// RecordTaskDeleted はタスク削除を記録する。
func (c *Collector) RecordTaskDeleted() {
	c.taskOps.WithLabelValues("delete").Inc()
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	c.logins.WithLabelValues(resultLabel(success)).Inc()
}

// RecordSignup はサインアップ結果を記録する。
func (c *Collector) RecordSignup(success bool) {
	c.signups.WithLabelValues(resultLabel(success)).Inc()
}

// RecordTokenRevoked はトークン失効を記録する。
func (c *Collector) RecordTokenRevoked() {
	c.revocations.Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Nop は何も記録しない実装。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordTaskCreated()                                 {}
func (Nop) RecordTaskUpdated()                                 {}
func (Nop) RecordTaskDeleted()                                 {}
func (Nop) RecordLogin(bool)                                   {}
func (Nop) RecordSignup(bool)                                  {}
func (Nop) RecordTokenRevoked()                                {}

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

// compile-time interface check
var (
	_ HTTPRecorder = (*Collector)(nil)
	_ TaskRecorder = (*Collector)(nil)
	_ AuthRecorder = (*Collector)(nil)
	_ HTTPRecorder = Nop{}
	_ TaskRecorder = Nop{}
	_ AuthRecorder = Nop{}
)
