// Package metrics はアカウント API の Prometheus メトリクスを提供します。
package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はアカウント API のカウンターを保持します。
// nil の Metrics に対する記録は何もしません。
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal       *prometheus.CounterVec
	SessionsIssuedTotal prometheus.Counter
	LoginFailuresTotal  prometheus.Counter
}

// New は専用のレジストリを作成し、Go/プロセスのコレクターとカスタムメトリクスを登録します。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_requests_total",
				Help: "Total number of account API requests by handler and status",
			},
			[]string{"handler", "status"},
		),
		SessionsIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "account_sessions_issued_total",
			Help: "Total number of session tokens issued by signup and login",
		}),
		LoginFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "account_login_failures_total",
			Help: "Total number of rejected login attempts",
		}),
	}

	reg.MustRegister(m.RequestsTotal, m.SessionsIssuedTotal, m.LoginFailuresTotal)
	return m
}

// ObserveRequest はハンドラーの応答ステータスを記録します。
func (m *Metrics) ObserveRequest(handler string, status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(handler, strconv.Itoa(status)).Inc()
}

// SessionIssued はトークン発行を記録します。
func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.SessionsIssuedTotal.Inc()
}

// LoginFailed はログイン失敗を記録します。
func (m *Metrics) LoginFailed() {
	if m == nil {
		return
	}
	m.LoginFailuresTotal.Inc()
}

// Handler は /metrics 用の Gin ハンドラーを返します。
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return gin.WrapH(h)
}
