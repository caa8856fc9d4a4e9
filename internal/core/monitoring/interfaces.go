package monitoring

import (
	"context"
	"time"
)

// MetricSource supplies the latest sample of a metric. A nil value with a
// nil error means no sample exists in the window.
type MetricSource interface {
	GetLatestValue(ctx context.Context, metric, tenantID string, window time.Duration) (*float64, error)
}

// Transport delivers a rendered alert over one channel type
type Transport interface {
	Send(ctx context.Context, recipient string, alert *Alert, action AlertAction) (string, error)
}

// Store is the durable record of rules, alerts, notifications, incidents
// and suppressions
type Store interface {
	SaveAlertRule(ctx context.Context, rule *AlertRule) error
	LoadEnabledRules(ctx context.Context) ([]*AlertRule, error)
	DeleteAlertRule(ctx context.Context, id string) error
	SaveAlert(ctx context.Context, alert *Alert) error
	UpdateAlert(ctx context.Context, alert *Alert) error
	LoadActiveAlerts(ctx context.Context) ([]*Alert, error)
	SaveNotification(ctx context.Context, notification *AlertNotification) error
	SaveIncident(ctx context.Context, incident *IncidentCorrelation) error
	UpdateIncident(ctx context.Context, incident *IncidentCorrelation) error
	LoadOpenIncidents(ctx context.Context) ([]*IncidentCorrelation, error)
	SaveSuppression(ctx context.Context, suppression *Suppression) error
	QuerySuppressions(ctx context.Context, activeAt time.Time) ([]*Suppression, error)
	QueryAlertHistory(ctx context.Context, filter AlertHistoryFilter) ([]*Alert, error)
	QueryAlertMetrics(ctx context.Context, window time.Duration) (*AlertMetrics, error)
}

// Clock abstracts time so timer-driven behaviour can be driven in tests
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback
type Timer interface {
	Stop() bool
}

// Event is a lifecycle notification pushed to live subscribers
type Event struct {
	Type      string               `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
	Alert     *Alert               `json:"alert,omitempty"`
	Incident  *IncidentCorrelation `json:"incident,omitempty"`
	Step      int                  `json:"step,omitempty"`
}

const (
	EventAlertFired        = "alert.fired"
	EventAlertAcknowledged = "alert.acknowledged"
	EventAlertResolved     = "alert.resolved"
	EventAlertEscalated    = "alert.escalated"
	EventIncidentOpened    = "incident.opened"
	EventIncidentUpdated   = "incident.updated"
	EventIncidentResolved  = "incident.resolved"
)

// EventPublisher receives lifecycle events; implementations must not block
type EventPublisher interface {
	Publish(event Event)
}

// Recorder receives engine counters for export
type Recorder interface {
	AlertFired(severity AlertSeverity, source AlertSource)
	ActiveAlerts(counts map[AlertSeverity]int)
	NotificationRecorded(channel ActionType, status NotificationStatus)
	EscalationExecuted(step int)
	IncidentOpened(severity AlertSeverity)
	EvaluationCompleted(duration time.Duration, rules int)
}

type realClock struct{}

// SystemClock returns a Clock backed by the time package
func SystemClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

type nopRecorder struct{}

func (nopRecorder) AlertFired(AlertSeverity, AlertSource)               {}
func (nopRecorder) ActiveAlerts(map[AlertSeverity]int)                  {}
func (nopRecorder) NotificationRecorded(ActionType, NotificationStatus) {}
func (nopRecorder) EscalationExecuted(int)                              {}
func (nopRecorder) IncidentOpened(AlertSeverity)                        {}
func (nopRecorder) EvaluationCompleted(time.Duration, int)              {}
