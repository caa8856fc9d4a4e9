package models

import "database/sql"

// Timestamps are stored as unix nanoseconds.

// AlertRule is a row of alert_rules. Nested rule parts are JSON encoded.
type AlertRule struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Description  string         `db:"description"`
	Metric       string         `db:"metric"`
	Conditions   string         `db:"conditions"`
	Actions      string         `db:"actions"`
	Suppressions string         `db:"suppressions"`
	Escalation   sql.NullString `db:"escalation"`
	Tags         string         `db:"tags"`
	Enabled      bool           `db:"enabled"`
	TenantID     string         `db:"tenant_id"`
	Origin       string         `db:"origin"`
	CreatedAt    int64          `db:"created_at"`
	UpdatedAt    int64          `db:"updated_at"`
}

// Alert is one occurrence row of alerts
type Alert struct {
	RowID          int64           `db:"row_id"`
	ID             string          `db:"id"`
	RuleID         string          `db:"rule_id"`
	Title          string          `db:"title"`
	Message        string          `db:"message"`
	Severity       string          `db:"severity"`
	Source         string          `db:"source"`
	Component      string          `db:"component"`
	Metric         string          `db:"metric"`
	CurrentValue   sql.NullFloat64 `db:"current_value"`
	Threshold      sql.NullFloat64 `db:"threshold"`
	Tags           string          `db:"tags"`
	TenantID       string          `db:"tenant_id"`
	Status         string          `db:"status"`
	CreatedAt      int64           `db:"created_at"`
	UpdatedAt      int64           `db:"updated_at"`
	AcknowledgedAt sql.NullInt64   `db:"acknowledged_at"`
	AcknowledgedBy string          `db:"acknowledged_by"`
	ResolvedAt     sql.NullInt64   `db:"resolved_at"`
	ResolvedBy     string          `db:"resolved_by"`
	Resolution     string          `db:"resolution"`
}

// AlertNotification is a delivery attempt row
type AlertNotification struct {
	ID             string `db:"id"`
	AlertID        string `db:"alert_id"`
	Channel        string `db:"channel"`
	Recipient      string `db:"recipient"`
	Kind           string `db:"kind"`
	EscalationStep int    `db:"escalation_step"`
	Status         string `db:"status"`
	Attempts       int    `db:"attempts"`
	LastAttempt    int64  `db:"last_attempt"`
	Response       string `db:"response"`
	Error          string `db:"error"`
}

// Incident is a row of incidents; alert_ids is a JSON array
type Incident struct {
	ID         string        `db:"id"`
	Title      string        `db:"title"`
	Component  string        `db:"component"`
	TenantID   string        `db:"tenant_id"`
	Status     string        `db:"status"`
	Severity   string        `db:"severity"`
	AlertIDs   string        `db:"alert_ids"`
	RootCause  string        `db:"root_cause"`
	Resolution string        `db:"resolution"`
	CreatedAt  int64         `db:"created_at"`
	UpdatedAt  int64         `db:"updated_at"`
	ResolvedAt sql.NullInt64 `db:"resolved_at"`
}

// Suppression is a row of suppressions
type Suppression struct {
	ID        string `db:"id"`
	Component string `db:"component"`
	Metric    string `db:"metric"`
	Tags      string `db:"tags"`
	Reason    string `db:"reason"`
	CreatedBy string `db:"created_by"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
}

// MetricSample is one recorded metric value
type MetricSample struct {
	ID         int64   `db:"id" json:"id"`
	Metric     string  `db:"metric" json:"metric"`
	TenantID   string  `db:"tenant_id" json:"tenant_id,omitempty"`
	Value      float64 `db:"value" json:"value"`
	RecordedAt int64   `db:"recorded_at" json:"-"`
}
