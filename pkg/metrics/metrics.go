// Package metrics 提供 Prometheus 指标集合与 /metrics 处理器
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradingassistant"

// 认证事件标签值
const (
	EventLoginSuccess = "login_success"
	EventLoginFailure = "login_failure"
	EventRefresh      = "refresh"
	EventRefreshReuse = "refresh_reuse"
	EventLogout       = "logout"
)

// Metrics 指标集合，使用独立 Registry 以便多实例测试
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthEventsTotal     *prometheus.CounterVec
	DomainEventsTotal   *prometheus.CounterVec
}

// New 创建并注册指标
func New(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests",
			ConstLabels: prometheus.Labels{"service": serviceName},
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: prometheus.Labels{"service": serviceName},
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),
		AuthEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "auth_events_total",
			Help:        "Authentication events by type",
			ConstLabels: prometheus.Labels{"service": serviceName},
		}, []string{"event"}),
		DomainEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "domain_events_published_total",
			Help:        "Domain events handed to the publisher",
			ConstLabels: prometheus.Labels{"service": serviceName},
		}, []string{"topic", "result"}),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthEventsTotal,
		m.DomainEventsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// AuthEvent 记录认证事件，m 为 nil 时忽略
func (m *Metrics) AuthEvent(event string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(event).Inc()
}

// DomainEvent 记录事件发布结果，m 为 nil 时忽略
func (m *Metrics) DomainEvent(topic string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.DomainEventsTotal.WithLabelValues(topic, result).Inc()
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 Prometheus 抓取处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
