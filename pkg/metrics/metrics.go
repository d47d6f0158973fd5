// Package metrics 提供 Prometheus 指标集合与 HTTP 暴露端点
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 计费服务指标集合
type Metrics struct {
	// 计费运行计数，按结果区分
	FeeRunsTotal *prometheus.CounterVec
	// 计费运行耗时
	FeeRunDuration prometheus.Histogram
	// 单次运行处理的账户数
	FeeRunAccounts prometheus.Histogram
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New 创建指标实例并完成注册
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		FeeRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: serviceName,
			Name:      "fee_runs_total",
			Help:      "Total fee calculation runs",
		}, []string{"result"}),
		FeeRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: serviceName,
			Name:      "fee_run_duration_seconds",
			Help:      "Fee calculation run duration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		FeeRunAccounts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: serviceName,
			Name:      "fee_run_accounts",
			Help:      "Accounts processed per fee calculation run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.FeeRunsTotal,
		m.FeeRunDuration,
		m.FeeRunAccounts,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// ObserveFeeRun 记录一次计费运行
func (m *Metrics) ObserveFeeRun(success bool, accounts int, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.FeeRunsTotal.WithLabelValues(result).Inc()
	m.FeeRunDuration.Observe(duration.Seconds())
	m.FeeRunAccounts.Observe(float64(accounts))
}

// GinMiddleware 返回记录 HTTP 请求指标的 gin 中间件
// 路径维度使用路由模板，避免路径参数撑爆标签基数
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 Prometheus 拉取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
