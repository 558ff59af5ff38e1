package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 通知摄取指标
	NotificationsReceived prometheus.Counter
	DecodeFailures        prometheus.Counter
	SyntheticRecords      prometheus.Counter
	ReconcileFallbacks    prometheus.Counter
	ReconcileFailures     prometheus.Counter
	RecordsInserted       prometheus.Counter
	InsertFailures        prometheus.Counter
	IngestDuration        prometheus.Histogram

	// 存储指标
	StoreRecords    prometheus.Gauge
	StorageErrors   *prometheus.CounterVec
	FeedClearsTotal prometheus.Counter

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailfeed_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailfeed_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		NotificationsReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_notifications_received_total",
				Help: "Total number of push notifications received",
			},
		),

		DecodeFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_decode_failures_total",
				Help: "Total number of notifications dropped due to decode failure",
			},
		),

		SyntheticRecords: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_synthetic_records_total",
				Help: "Total number of placeholder records for synthetic test notifications",
			},
		),

		ReconcileFallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_reconcile_fallbacks_total",
				Help: "Total number of reconciliations resolved via the latest-unread fallback",
			},
		),

		ReconcileFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_reconcile_failures_total",
				Help: "Total number of failed provider reconciliations",
			},
		),

		RecordsInserted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_records_inserted_total",
				Help: "Total number of message records inserted",
			},
		),

		InsertFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_insert_failures_total",
				Help: "Total number of swallowed record insert failures",
			},
		),

		IngestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailfeed_ingest_duration_seconds",
				Help:    "Notification processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		StoreRecords: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailfeed_store_records",
				Help: "Number of records currently visible in the ordered feed",
			},
		),

		StorageErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailfeed_storage_errors_total",
				Help: "Total number of storage backend errors",
			},
			[]string{"operation"},
		),

		FeedClearsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_feed_clears_total",
				Help: "Total number of operator clear-all requests",
			},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfeed_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStorageError 记录存储后端错误
func (m *Metrics) RecordStorageError(operation string) {
	m.StorageErrors.WithLabelValues(operation).Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
