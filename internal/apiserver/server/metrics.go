// Package server Prometheus 指标导出
package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 摄取管道指标
	SheetsUploadedTotal *prometheus.CounterVec
	SheetRowsParsed     prometheus.Histogram

	// 摘要指标
	InsightRequestsTotal *prometheus.CounterVec
	InsightDuration      prometheus.Histogram
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		SheetsUploadedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sheets_uploaded_total",
				Help:      "Total sheet uploads by format and persistence",
			},
			[]string{"format", "persisted"},
		),
		SheetRowsParsed: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sheet_rows_parsed",
				Help:      "Rows parsed per uploaded sheet",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
		),
		InsightRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "insight_requests_total",
				Help:      "Total insight generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		InsightDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "insight_duration_seconds",
				Help:      "Insight generation duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordUpload 记录一次表格上传
func (m *Metrics) RecordUpload(format string, persisted bool, rows int) {
	m.SheetsUploadedTotal.WithLabelValues(format, strconv.FormatBool(persisted)).Inc()
	m.SheetRowsParsed.Observe(float64(rows))
}

// RecordInsight 记录一次摘要生成
func (m *Metrics) RecordInsight(outcome string, duration time.Duration) {
	m.InsightRequestsTotal.WithLabelValues(outcome).Inc()
	m.InsightDuration.Observe(duration.Seconds())
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将 ID 替换为占位符，避免高基数
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/sheets/") && path != "/api/v1/sheets/history":
		return "/api/v1/sheets/{id}"
	case strings.HasPrefix(path, "/api/v1/admin/admins/"):
		return "/api/v1/admin/admins/{id}"
	case strings.HasPrefix(path, "/api/v1/admin/users/") && strings.Contains(path[len("/api/v1/admin/users/"):], "/files/"):
		return "/api/v1/admin/users/{id}/files/{fileId}"
	case strings.HasPrefix(path, "/api/v1/admin/users/"):
		return "/api/v1/admin/users/{id}"
	default:
		return path
	}
}

// MetricsHandler 返回 Prometheus HTTP Handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
