package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

// PrometheusRecorder implements monitoring.Recorder using Prometheus metrics
type PrometheusRecorder struct {
	// Alert Metrics
	alertsFired     *prometheus.CounterVec
	alertsActive    *prometheus.GaugeVec
	incidentsOpened *prometheus.CounterVec
	escalations     *prometheus.CounterVec

	// Delivery Metrics
	notifications *prometheus.CounterVec

	// Evaluation Metrics
	evaluationDuration prometheus.Histogram
	rulesEvaluated     prometheus.Gauge

	// HTTP Metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registerer prometheus.Registerer
	namespace  string
}

var _ monitoring.Recorder = (*PrometheusRecorder)(nil)

var severities = []monitoring.AlertSeverity{
	monitoring.SeverityLow,
	monitoring.SeverityMedium,
	monitoring.SeverityHigh,
	monitoring.SeverityCritical,
}

// NewPrometheusRecorder registers the engine metrics on reg. A nil reg uses
// the default registry.
func NewPrometheusRecorder(namespace string, reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	r := &PrometheusRecorder{registerer: reg, namespace: namespace}

	r.alertsFired = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Total number of alerts fired",
		},
		[]string{"severity", "source"},
	)

	r.alertsActive = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_active",
			Help:      "Number of currently active alerts",
		},
		[]string{"severity"},
	)

	r.incidentsOpened = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_opened_total",
			Help:      "Total number of correlated incidents opened",
		},
		[]string{"severity"},
	)

	r.escalations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of escalation steps executed",
		},
		[]string{"step"},
	)

	r.notifications = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notification attempts",
		},
		[]string{"channel", "status"},
	)

	r.evaluationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of a full rule evaluation pass",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
	)

	r.rulesEvaluated = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_evaluated",
			Help:      "Number of rules checked in the last evaluation pass",
		},
	)

	r.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return r
}

// AlertFired records a newly created alert
func (r *PrometheusRecorder) AlertFired(severity monitoring.AlertSeverity, source monitoring.AlertSource) {
	r.alertsFired.WithLabelValues(string(severity), string(source)).Inc()
}

// ActiveAlerts replaces the active alert gauges. Severities missing from
// counts drop to zero.
func (r *PrometheusRecorder) ActiveAlerts(counts map[monitoring.AlertSeverity]int) {
	for _, severity := range severities {
		r.alertsActive.WithLabelValues(string(severity)).Set(float64(counts[severity]))
	}
}

func (r *PrometheusRecorder) NotificationRecorded(channel monitoring.ActionType, status monitoring.NotificationStatus) {
	r.notifications.WithLabelValues(string(channel), string(status)).Inc()
}

func (r *PrometheusRecorder) EscalationExecuted(step int) {
	r.escalations.WithLabelValues(strconv.Itoa(step)).Inc()
}

func (r *PrometheusRecorder) IncidentOpened(severity monitoring.AlertSeverity) {
	r.incidentsOpened.WithLabelValues(string(severity)).Inc()
}

func (r *PrometheusRecorder) EvaluationCompleted(duration time.Duration, rules int) {
	r.evaluationDuration.Observe(duration.Seconds())
	r.rulesEvaluated.Set(float64(rules))
}

// RecordHTTPRequest records an API request
func (r *PrometheusRecorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveGauge registers a gauge read from fn at scrape time
func (r *PrometheusRecorder) ObserveGauge(name, help string, fn func() float64) {
	promauto.With(r.registerer).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: r.namespace,
			Name:      name,
			Help:      help,
		},
		fn,
	)
}
