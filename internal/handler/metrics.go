package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insider-one/notify-dispatch/internal/retry"
)

// Metrics holds the Prometheus collectors [spec §1 observability].
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
	ingressQueueDepth   prometheus.Gauge
	processingLatency   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Total number of notifications sent successfully, by channel",
			},
			[]string{"channel"},
		),
		notificationsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_failed_total",
				Help: "Total number of terminally failed notifications, by channel and error code",
			},
			[]string{"channel", "error_code"},
		),
		ingressQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "notification_ingress_queue_depth",
				Help: "Current depth of the async ingress queue",
			},
		),
		processingLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notification_processing_latency_seconds",
				Help:    "Time from creation to successful send",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"channel"},
		),
	}
}

func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordNotificationSent(channel string) {
	m.notificationsSent.WithLabelValues(channel).Inc()
}

func (m *Metrics) RecordNotificationFailed(channel, errorCode string) {
	m.notificationsFailed.WithLabelValues(channel, errorCode).Inc()
}

func (m *Metrics) SetIngressQueueDepth(depth float64) {
	m.ingressQueueDepth.Set(depth)
}

func (m *Metrics) RecordProcessingLatency(channel string, latency time.Duration) {
	m.processingLatency.WithLabelValues(channel).Observe(latency.Seconds())
}

// MetricsHandler serves /metrics and /metrics/realtime.
type MetricsHandler struct {
	metrics *Metrics
	queue   *retry.IngressQueue
}

func NewMetricsHandler(metrics *Metrics, queue *retry.IngressQueue) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, queue: queue}
}

func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}

// RealtimeQueueMetrics is the body of GET /metrics/realtime.
type RealtimeQueueMetrics struct {
	IngressDepth int64 `json:"ingress_queue_depth"`
}

func (h *MetricsHandler) RealtimeMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	depth, err := h.queue.Depth(ctx)
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "METRICS_ERROR", "failed to read ingress queue depth", nil)
		return
	}

	h.metrics.SetIngressQueueDepth(float64(depth))
	JSON(w, http.StatusOK, RealtimeQueueMetrics{IngressDepth: depth})
}
