package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder("alertengine", reg)

	r.AlertFired(monitoring.SeverityHigh, monitoring.SourceThreshold)
	r.AlertFired(monitoring.SeverityHigh, monitoring.SourceThreshold)
	r.AlertFired(monitoring.SeverityLow, monitoring.SourceExternal)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.alertsFired.WithLabelValues("high", "threshold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alertsFired.WithLabelValues("low", "external")))

	r.ActiveAlerts(map[monitoring.AlertSeverity]int{monitoring.SeverityCritical: 3})
	assert.Equal(t, 3.0, testutil.ToFloat64(r.alertsActive.WithLabelValues("critical")))
	r.ActiveAlerts(map[monitoring.AlertSeverity]int{})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.alertsActive.WithLabelValues("critical")))

	r.NotificationRecorded(monitoring.ActionWebhook, monitoring.NotificationFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.notifications.WithLabelValues("webhook", "failed")))

	r.EscalationExecuted(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.escalations.WithLabelValues("1")))

	r.IncidentOpened(monitoring.SeverityMedium)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.incidentsOpened.WithLabelValues("medium")))

	r.EvaluationCompleted(20*time.Millisecond, 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(r.rulesEvaluated))

	r.RecordHTTPRequest("GET", "/api/v1/rules", 200, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues("GET", "/api/v1/rules", "200")))

	r.ObserveGauge("websocket_clients", "Connected clients", func() float64 { return 5 })

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, name := range []string{
		"alertengine_alerts_fired_total",
		"alertengine_alerts_active",
		"alertengine_notifications_total",
		"alertengine_escalations_total",
		"alertengine_evaluation_duration_seconds",
		"alertengine_incidents_opened_total",
		"alertengine_websocket_clients",
	} {
		assert.True(t, names[name], name)
	}
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker("1.2.3", 50*time.Millisecond)
	h.Register("database", func(context.Context) HealthStatus {
		return NewHealthStatus(StatusHealthy, "ok")
	})

	report := h.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "1.2.3", report.SystemInfo["version"])
	assert.True(t, report.Components["database"].IsHealthy())

	h.Register("websocket", func(context.Context) HealthStatus {
		return NewHealthStatus(StatusDegraded, "no clients")
	})
	assert.Equal(t, StatusDegraded, h.Check(context.Background()).Status)

	h.Register("slow", func(ctx context.Context) HealthStatus {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return NewHealthStatus(StatusHealthy, "late")
	})
	report = h.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "Health check timed out", report.Components["slow"].Message)
	assert.Equal(t, "50ms", report.Components["slow"].Details["timeout"])
}
