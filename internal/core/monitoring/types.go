package monitoring

import (
	"time"
)

// AlertSeverity ranks how urgent an alert is
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertSource describes what produced an alert
type AlertSource string

const (
	SourcePerformance  AlertSource = "performance"
	SourceAvailability AlertSource = "availability"
	SourceThreshold    AlertSource = "threshold"
	SourceAnomaly      AlertSource = "anomaly"
	SourceExternal     AlertSource = "external"
)

// AlertStatus is the lifecycle state of an alert
type AlertStatus string

const (
	StatusOpen         AlertStatus = "open"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusSuppressed   AlertStatus = "suppressed"
)

type ConditionOperator string

const (
	OpGreaterThan    ConditionOperator = "gt"
	OpGreaterOrEqual ConditionOperator = "gte"
	OpLessThan       ConditionOperator = "lt"
	OpLessOrEqual    ConditionOperator = "lte"
	OpEqual          ConditionOperator = "eq"
	OpNotEqual       ConditionOperator = "neq"
)

type SuppressionType string

const (
	SuppressionTimeBased       SuppressionType = "time_based"
	SuppressionConditionBased  SuppressionType = "condition_based"
	SuppressionDependencyBased SuppressionType = "dependency_based"
)

type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationDelivered NotificationStatus = "delivered"
)

// NotificationKind says which lifecycle step produced a notification
type NotificationKind string

const (
	KindAlert           NotificationKind = "alert"
	KindEscalation      NotificationKind = "escalation"
	KindAcknowledgement NotificationKind = "acknowledgement"
	KindResolution      NotificationKind = "resolution"
)

// AlertRule is a named policy evaluated against a single metric
type AlertRule struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description,omitempty" yaml:"description"`
	Metric       string            `json:"metric" yaml:"metric"`
	Conditions   []AlertCondition  `json:"conditions" yaml:"conditions"`
	Actions      []AlertAction     `json:"actions,omitempty" yaml:"actions"`
	Suppressions []SuppressionRule `json:"suppressions,omitempty" yaml:"suppressions"`
	Escalation   *EscalationPolicy `json:"escalation,omitempty" yaml:"escalation"`
	Tags         map[string]string `json:"tags,omitempty" yaml:"tags"`
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	TenantID     string            `json:"tenant_id,omitempty" yaml:"tenant_id"`
	// Origin names where the rule was loaded from; empty for API-created rules.
	Origin    string    `json:"origin,omitempty" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// AlertCondition is one threshold check of a rule
type AlertCondition struct {
	Operator  ConditionOperator `json:"operator" yaml:"operator"`
	Threshold float64           `json:"threshold" yaml:"threshold"`
	// Duration is how long the condition must hold before firing ("0s" fires at once).
	Duration string        `json:"duration,omitempty" yaml:"duration"`
	Severity AlertSeverity `json:"severity" yaml:"severity"`
}

// Alert is the live or historical record of one firing condition
type Alert struct {
	ID             string            `json:"id"`
	RuleID         string            `json:"rule_id,omitempty"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	Severity       AlertSeverity     `json:"severity"`
	Source         AlertSource       `json:"source"`
	Component      string            `json:"component"`
	Metric         string            `json:"metric,omitempty"`
	CurrentValue   *float64          `json:"current_value,omitempty"`
	Threshold      *float64          `json:"threshold,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	TenantID       string            `json:"tenant_id,omitempty"`
	Status         AlertStatus       `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string            `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy     string            `json:"resolved_by,omitempty"`
	Resolution     string            `json:"resolution,omitempty"`

	seq uint64
}

// IsActive reports whether the alert still counts toward deduplication
func (a *Alert) IsActive() bool {
	return a.Status == StatusOpen || a.Status == StatusAcknowledged
}

func (a *Alert) clone() *Alert {
	c := *a
	c.Tags = copyTags(a.Tags)
	if a.CurrentValue != nil {
		v := *a.CurrentValue
		c.CurrentValue = &v
	}
	if a.Threshold != nil {
		v := *a.Threshold
		c.Threshold = &v
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// SuppressionRule attaches a mute policy to a rule. Exactly one of the
// typed configs must be set, matching Type.
type SuppressionRule struct {
	Type       SuppressionType        `json:"type" yaml:"type"`
	Enabled    bool                   `json:"enabled" yaml:"enabled"`
	Window     *TimeWindowConfig      `json:"window,omitempty" yaml:"window"`
	Condition  *ConditionSuppression  `json:"condition,omitempty" yaml:"condition"`
	Dependency *DependencySuppression `json:"dependency,omitempty" yaml:"dependency"`
}

// TimeWindowConfig mutes a rule during a recurring wall-clock window
type TimeWindowConfig struct {
	Start    string   `json:"start" yaml:"start"` // HH:MM
	End      string   `json:"end" yaml:"end"`     // HH:MM, may wrap past midnight
	Days     []string `json:"days,omitempty" yaml:"days"`
	Timezone string   `json:"timezone,omitempty" yaml:"timezone"`
}

// ConditionSuppression mutes a rule while another metric satisfies a comparison
type ConditionSuppression struct {
	Metric    string            `json:"metric" yaml:"metric"`
	Operator  ConditionOperator `json:"operator" yaml:"operator"`
	Threshold float64           `json:"threshold" yaml:"threshold"`
}

// DependencySuppression mutes a rule while an upstream component is alerting
type DependencySuppression struct {
	Component string `json:"component" yaml:"component"`
}

// Suppression is a time-bounded mute applied against future fires
type Suppression struct {
	ID        string            `json:"id"`
	Component string            `json:"component"`
	Metric    string            `json:"metric,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Reason    string            `json:"reason"`
	CreatedBy string            `json:"created_by,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// EscalationPolicy is an ordered list of delayed re-notifications
type EscalationPolicy struct {
	Name  string           `json:"name,omitempty" yaml:"name"`
	Steps []EscalationStep `json:"steps" yaml:"steps"`
}

// EscalationStep runs its actions if the alert is still open after Delay
type EscalationStep struct {
	Delay   string        `json:"delay" yaml:"delay"`
	Actions []AlertAction `json:"actions" yaml:"actions"`
	// AutoResolve is advisory for external collaborators; the engine never acts on it.
	AutoResolve bool `json:"auto_resolve,omitempty" yaml:"auto_resolve"`
}

// IncidentCorrelation groups related active alerts of one component
type IncidentCorrelation struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Component  string         `json:"component"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Status     IncidentStatus `json:"status"`
	Severity   AlertSeverity  `json:"severity"`
	AlertIDs   []string       `json:"alert_ids"`
	RootCause  string         `json:"root_cause,omitempty"`
	Resolution string         `json:"resolution,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

func (i *IncidentCorrelation) clone() *IncidentCorrelation {
	c := *i
	c.AlertIDs = append([]string(nil), i.AlertIDs...)
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

func (i *IncidentCorrelation) contains(alertID string) bool {
	for _, id := range i.AlertIDs {
		if id == alertID {
			return true
		}
	}
	return false
}

// AlertNotification records one delivery attempt
type AlertNotification struct {
	ID             string             `json:"id"`
	AlertID        string             `json:"alert_id"`
	Channel        ActionType         `json:"channel"`
	Recipient      string             `json:"recipient"`
	Kind           NotificationKind   `json:"kind"`
	EscalationStep int                `json:"escalation_step,omitempty"`
	Status         NotificationStatus `json:"status"`
	Attempts       int                `json:"attempts"`
	LastAttempt    time.Time          `json:"last_attempt"`
	Response       string             `json:"response,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// AlertHistoryFilter narrows a history query; zero fields match everything
type AlertHistoryFilter struct {
	Status    AlertStatus   `json:"status,omitempty"`
	Severity  AlertSeverity `json:"severity,omitempty"`
	Component string        `json:"component,omitempty"`
	TenantID  string        `json:"tenant_id,omitempty"`
	Since     time.Time     `json:"since,omitempty"`
	Until     time.Time     `json:"until,omitempty"`
	Limit     int           `json:"limit,omitempty"`
}

// FireRequest carries one firing observation into the lifecycle manager
type FireRequest struct {
	Source       AlertSource       `json:"source"`
	Component    string            `json:"component"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	Severity     AlertSeverity     `json:"severity"`
	Metric       string            `json:"metric,omitempty"`
	CurrentValue *float64          `json:"current_value,omitempty"`
	Threshold    *float64          `json:"threshold,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	TenantID     string            `json:"tenant_id,omitempty"`
	RuleID       string            `json:"rule_id,omitempty"`
}

// SuppressRequest asks for a component/metric/tags mute of a given duration
type SuppressRequest struct {
	Component string            `json:"component"`
	Metric    string            `json:"metric,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Duration  string            `json:"duration"`
	Reason    string            `json:"reason"`
	CreatedBy string            `json:"created_by,omitempty"`
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
