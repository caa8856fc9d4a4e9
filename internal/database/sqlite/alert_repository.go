package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
	"github.com/frostdev-ops/alert-engine/internal/database/models"
)

// AlertRepository persists the alert engine's state in SQLite
type AlertRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
	now func() time.Time
}

var _ monitoring.Store = (*AlertRepository)(nil)

func NewAlertRepository(db *sqlx.DB, log *logrus.Logger) *AlertRepository {
	return &AlertRepository{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// SetClock overrides the time source used for metric windows
func (r *AlertRepository) SetClock(clock monitoring.Clock) {
	r.now = clock.Now
}

const alertColumns = `row_id, id, rule_id, title, message, severity, source, component, metric,
	current_value, threshold, tags, tenant_id, status, created_at, updated_at,
	acknowledged_at, acknowledged_by, resolved_at, resolved_by, resolution`

// Rules

func (r *AlertRepository) SaveAlertRule(ctx context.Context, rule *monitoring.AlertRule) error {
	row, err := ruleToRow(rule)
	if err != nil {
		return fmt.Errorf("failed to encode alert rule: %w", err)
	}

	query := `INSERT INTO alert_rules (id, name, description, metric, conditions, actions,
			  suppressions, escalation, tags, enabled, tenant_id, origin, created_at, updated_at)
			  VALUES (:id, :name, :description, :metric, :conditions, :actions,
			  :suppressions, :escalation, :tags, :enabled, :tenant_id, :origin, :created_at, :updated_at)
			  ON CONFLICT(id) DO UPDATE SET
			  name = excluded.name, description = excluded.description, metric = excluded.metric,
			  conditions = excluded.conditions, actions = excluded.actions,
			  suppressions = excluded.suppressions, escalation = excluded.escalation,
			  tags = excluded.tags, enabled = excluded.enabled, tenant_id = excluded.tenant_id,
			  origin = excluded.origin, updated_at = excluded.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.log.WithError(err).WithField("rule_id", rule.ID).Error("Failed to save alert rule")
		return fmt.Errorf("failed to save alert rule: %w", err)
	}
	return nil
}

func (r *AlertRepository) LoadEnabledRules(ctx context.Context) ([]*monitoring.AlertRule, error) {
	query := `SELECT id, name, description, metric, conditions, actions, suppressions, escalation,
			  tags, enabled, tenant_id, origin, created_at, updated_at
			  FROM alert_rules WHERE enabled = 1 ORDER BY name`

	var rows []models.AlertRule
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.log.WithError(err).Error("Failed to load alert rules")
		return nil, fmt.Errorf("failed to load alert rules: %w", err)
	}

	rules := make([]*monitoring.AlertRule, 0, len(rows))
	for i := range rows {
		rule, err := rowToRule(&rows[i])
		if err != nil {
			// one corrupt row should not stop the rest from loading
			r.log.WithError(err).WithField("rule_id", rows[i].ID).Warn("Skipping undecodable alert rule")
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *AlertRepository) DeleteAlertRule(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id); err != nil {
		r.log.WithError(err).WithField("rule_id", id).Error("Failed to delete alert rule")
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}
	return nil
}

// Alerts

func (r *AlertRepository) SaveAlert(ctx context.Context, alert *monitoring.Alert) error {
	row, err := alertToRow(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	query := `INSERT INTO alerts (id, rule_id, title, message, severity, source, component, metric,
			  current_value, threshold, tags, tenant_id, status, created_at, updated_at,
			  acknowledged_at, acknowledged_by, resolved_at, resolved_by, resolution)
			  VALUES (:id, :rule_id, :title, :message, :severity, :source, :component, :metric,
			  :current_value, :threshold, :tags, :tenant_id, :status, :created_at, :updated_at,
			  :acknowledged_at, :acknowledged_by, :resolved_at, :resolved_by, :resolution)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.log.WithError(err).WithField("alert_id", alert.ID).Error("Failed to save alert")
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// UpdateAlert rewrites the mutable fields of the alert's current occurrence
func (r *AlertRepository) UpdateAlert(ctx context.Context, alert *monitoring.Alert) error {
	row, err := alertToRow(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	query := `UPDATE alerts SET severity = :severity, message = :message, current_value = :current_value,
			  status = :status, updated_at = :updated_at,
			  acknowledged_at = :acknowledged_at, acknowledged_by = :acknowledged_by,
			  resolved_at = :resolved_at, resolved_by = :resolved_by, resolution = :resolution
			  WHERE id = :id AND created_at = :created_at`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		r.log.WithError(err).WithField("alert_id", alert.ID).Error("Failed to update alert")
		return fmt.Errorf("failed to update alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert %s has no stored occurrence", alert.ID)
	}
	return nil
}

func (r *AlertRepository) LoadActiveAlerts(ctx context.Context) ([]*monitoring.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
			  WHERE status IN ('open', 'acknowledged') ORDER BY created_at, row_id`

	var rows []models.Alert
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.log.WithError(err).Error("Failed to load active alerts")
		return nil, fmt.Errorf("failed to load active alerts: %w", err)
	}
	return rowsToAlerts(rows)
}

func (r *AlertRepository) QueryAlertHistory(ctx context.Context, filter monitoring.AlertHistoryFilter) ([]*monitoring.Alert, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Component != "" {
		where = append(where, "component = ?")
		args = append(args, filter.Component)
	}
	if filter.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, filter.Until.UnixNano())
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, row_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []models.Alert
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithError(err).Error("Failed to query alert history")
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	return rowsToAlerts(rows)
}

// QueryAlertMetrics aggregates the alerts created within window
func (r *AlertRepository) QueryAlertMetrics(ctx context.Context, window time.Duration) (*monitoring.AlertMetrics, error) {
	now := r.now()
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE created_at >= ?`

	var rows []models.Alert
	if err := r.db.SelectContext(ctx, &rows, query, now.Add(-window).UnixNano()); err != nil {
		r.log.WithError(err).Error("Failed to query alert metrics")
		return nil, fmt.Errorf("failed to query alert metrics: %w", err)
	}

	alerts, err := rowsToAlerts(rows)
	if err != nil {
		return nil, err
	}
	return monitoring.ComputeAlertMetrics(alerts, window, now, 0), nil
}

// Notifications

func (r *AlertRepository) SaveNotification(ctx context.Context, n *monitoring.AlertNotification) error {
	row := models.AlertNotification{
		ID:             n.ID,
		AlertID:        n.AlertID,
		Channel:        string(n.Channel),
		Recipient:      n.Recipient,
		Kind:           string(n.Kind),
		EscalationStep: n.EscalationStep,
		Status:         string(n.Status),
		Attempts:       n.Attempts,
		LastAttempt:    n.LastAttempt.UnixNano(),
		Response:       n.Response,
		Error:          n.Error,
	}

	query := `INSERT INTO alert_notifications (id, alert_id, channel, recipient, kind, escalation_step,
			  status, attempts, last_attempt, response, error)
			  VALUES (:id, :alert_id, :channel, :recipient, :kind, :escalation_step,
			  :status, :attempts, :last_attempt, :response, :error)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.log.WithError(err).WithField("alert_id", n.AlertID).Error("Failed to save notification")
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// GetNotifications returns the delivery attempts recorded for an alert, oldest first
func (r *AlertRepository) GetNotifications(ctx context.Context, alertID string) ([]*monitoring.AlertNotification, error) {
	query := `SELECT id, alert_id, channel, recipient, kind, escalation_step, status, attempts,
			  last_attempt, response, error FROM alert_notifications
			  WHERE alert_id = ? ORDER BY last_attempt, rowid`

	var rows []models.AlertNotification
	if err := r.db.SelectContext(ctx, &rows, query, alertID); err != nil {
		r.log.WithError(err).WithField("alert_id", alertID).Error("Failed to get notifications")
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	out := make([]*monitoring.AlertNotification, 0, len(rows))
	for _, row := range rows {
		out = append(out, &monitoring.AlertNotification{
			ID:             row.ID,
			AlertID:        row.AlertID,
			Channel:        monitoring.ActionType(row.Channel),
			Recipient:      row.Recipient,
			Kind:           monitoring.NotificationKind(row.Kind),
			EscalationStep: row.EscalationStep,
			Status:         monitoring.NotificationStatus(row.Status),
			Attempts:       row.Attempts,
			LastAttempt:    fromNanos(row.LastAttempt),
			Response:       row.Response,
			Error:          row.Error,
		})
	}
	return out, nil
}

// Incidents

func (r *AlertRepository) SaveIncident(ctx context.Context, incident *monitoring.IncidentCorrelation) error {
	row, err := incidentToRow(incident)
	if err != nil {
		return fmt.Errorf("failed to encode incident: %w", err)
	}

	query := `INSERT INTO incidents (id, title, component, tenant_id, status, severity, alert_ids,
			  root_cause, resolution, created_at, updated_at, resolved_at)
			  VALUES (:id, :title, :component, :tenant_id, :status, :severity, :alert_ids,
			  :root_cause, :resolution, :created_at, :updated_at, :resolved_at)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.log.WithError(err).WithField("incident_id", incident.ID).Error("Failed to save incident")
		return fmt.Errorf("failed to save incident: %w", err)
	}
	return nil
}

func (r *AlertRepository) UpdateIncident(ctx context.Context, incident *monitoring.IncidentCorrelation) error {
	row, err := incidentToRow(incident)
	if err != nil {
		return fmt.Errorf("failed to encode incident: %w", err)
	}

	query := `UPDATE incidents SET status = :status, severity = :severity, alert_ids = :alert_ids,
			  root_cause = :root_cause, resolution = :resolution, updated_at = :updated_at,
			  resolved_at = :resolved_at WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		r.log.WithError(err).WithField("incident_id", incident.ID).Error("Failed to update incident")
		return fmt.Errorf("failed to update incident: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", monitoring.ErrIncidentNotFound, incident.ID)
	}
	return nil
}

// LoadOpenIncidents returns incidents not yet resolved, oldest first
func (r *AlertRepository) LoadOpenIncidents(ctx context.Context) ([]*monitoring.IncidentCorrelation, error) {
	query := `SELECT id, title, component, tenant_id, status, severity, alert_ids, root_cause,
			  resolution, created_at, updated_at, resolved_at FROM incidents
			  WHERE status != 'resolved' ORDER BY created_at`

	var rows []models.Incident
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.log.WithError(err).Error("Failed to load open incidents")
		return nil, fmt.Errorf("failed to load open incidents: %w", err)
	}

	out := make([]*monitoring.IncidentCorrelation, 0, len(rows))
	for i := range rows {
		incident, err := rowToIncident(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, incident)
	}
	return out, nil
}

// GetIncident returns a stored incident, or nil when it does not exist
func (r *AlertRepository) GetIncident(ctx context.Context, id string) (*monitoring.IncidentCorrelation, error) {
	query := `SELECT id, title, component, tenant_id, status, severity, alert_ids, root_cause,
			  resolution, created_at, updated_at, resolved_at FROM incidents WHERE id = ?`

	var row models.Incident
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.log.WithError(err).WithField("incident_id", id).Error("Failed to get incident")
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return rowToIncident(&row)
}

// Suppressions

func (r *AlertRepository) SaveSuppression(ctx context.Context, s *monitoring.Suppression) error {
	tags, err := encodeJSON(s.Tags, "{}")
	if err != nil {
		return fmt.Errorf("failed to encode suppression tags: %w", err)
	}

	row := models.Suppression{
		ID:        s.ID,
		Component: s.Component,
		Metric:    s.Metric,
		Tags:      tags,
		Reason:    s.Reason,
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt.UnixNano(),
		ExpiresAt: s.ExpiresAt.UnixNano(),
	}

	query := `INSERT INTO suppressions (id, component, metric, tags, reason, created_by, created_at, expires_at)
			  VALUES (:id, :component, :metric, :tags, :reason, :created_by, :created_at, :expires_at)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.log.WithError(err).WithField("suppression_id", s.ID).Error("Failed to save suppression")
		return fmt.Errorf("failed to save suppression: %w", err)
	}
	return nil
}

func (r *AlertRepository) QuerySuppressions(ctx context.Context, activeAt time.Time) ([]*monitoring.Suppression, error) {
	query := `SELECT id, component, metric, tags, reason, created_by, created_at, expires_at
			  FROM suppressions WHERE expires_at > ? ORDER BY created_at`

	var rows []models.Suppression
	if err := r.db.SelectContext(ctx, &rows, query, activeAt.UnixNano()); err != nil {
		r.log.WithError(err).Error("Failed to query suppressions")
		return nil, fmt.Errorf("failed to query suppressions: %w", err)
	}

	out := make([]*monitoring.Suppression, 0, len(rows))
	for _, row := range rows {
		var tags map[string]string
		if err := decodeJSON(row.Tags, &tags); err != nil {
			return nil, fmt.Errorf("failed to decode suppression %s: %w", row.ID, err)
		}
		out = append(out, &monitoring.Suppression{
			ID:        row.ID,
			Component: row.Component,
			Metric:    row.Metric,
			Tags:      tags,
			Reason:    row.Reason,
			CreatedBy: row.CreatedBy,
			CreatedAt: fromNanos(row.CreatedAt),
			ExpiresAt: fromNanos(row.ExpiresAt),
		})
	}
	return out, nil
}

// PurgeResolvedBefore deletes resolved alert occurrences, and their
// notifications, resolved before cutoff
func (r *AlertRepository) PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	nanos := cutoff.UnixNano()
	if _, err := tx.ExecContext(ctx, `DELETE FROM alert_notifications WHERE alert_id IN (
			SELECT id FROM alerts WHERE status = 'resolved' AND resolved_at < ?
		) AND last_attempt < ?`, nanos, nanos); err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE status = 'resolved' AND resolved_at < ?`, nanos)
	if err != nil {
		return 0, fmt.Errorf("failed to purge alerts: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM suppressions WHERE expires_at < ?`, nanos); err != nil {
		return 0, fmt.Errorf("failed to purge suppressions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}
	return purged, nil
}

// Row conversion

func ruleToRow(rule *monitoring.AlertRule) (*models.AlertRule, error) {
	conditions, err := encodeJSON(rule.Conditions, "[]")
	if err != nil {
		return nil, err
	}
	actions, err := encodeJSON(rule.Actions, "[]")
	if err != nil {
		return nil, err
	}
	suppressions, err := encodeJSON(rule.Suppressions, "[]")
	if err != nil {
		return nil, err
	}
	tags, err := encodeJSON(rule.Tags, "{}")
	if err != nil {
		return nil, err
	}

	row := &models.AlertRule{
		ID:           rule.ID,
		Name:         rule.Name,
		Description:  rule.Description,
		Metric:       rule.Metric,
		Conditions:   conditions,
		Actions:      actions,
		Suppressions: suppressions,
		Tags:         tags,
		Enabled:      rule.Enabled,
		TenantID:     rule.TenantID,
		Origin:       rule.Origin,
		CreatedAt:    rule.CreatedAt.UnixNano(),
		UpdatedAt:    rule.UpdatedAt.UnixNano(),
	}
	if rule.Escalation != nil {
		escalation, err := json.Marshal(rule.Escalation)
		if err != nil {
			return nil, err
		}
		row.Escalation = sql.NullString{String: string(escalation), Valid: true}
	}
	return row, nil
}

func rowToRule(row *models.AlertRule) (*monitoring.AlertRule, error) {
	rule := &monitoring.AlertRule{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Metric:      row.Metric,
		Enabled:     row.Enabled,
		TenantID:    row.TenantID,
		Origin:      row.Origin,
		CreatedAt:   fromNanos(row.CreatedAt),
		UpdatedAt:   fromNanos(row.UpdatedAt),
	}
	if err := decodeJSON(row.Conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("conditions: %w", err)
	}
	if err := decodeJSON(row.Actions, &rule.Actions); err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	if err := decodeJSON(row.Suppressions, &rule.Suppressions); err != nil {
		return nil, fmt.Errorf("suppressions: %w", err)
	}
	if err := decodeJSON(row.Tags, &rule.Tags); err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	if row.Escalation.Valid {
		rule.Escalation = &monitoring.EscalationPolicy{}
		if err := decodeJSON(row.Escalation.String, rule.Escalation); err != nil {
			return nil, fmt.Errorf("escalation: %w", err)
		}
	}
	return rule, nil
}

func alertToRow(a *monitoring.Alert) (*models.Alert, error) {
	tags, err := encodeJSON(a.Tags, "{}")
	if err != nil {
		return nil, err
	}
	return &models.Alert{
		ID:             a.ID,
		RuleID:         a.RuleID,
		Title:          a.Title,
		Message:        a.Message,
		Severity:       string(a.Severity),
		Source:         string(a.Source),
		Component:      a.Component,
		Metric:         a.Metric,
		CurrentValue:   nullFloat(a.CurrentValue),
		Threshold:      nullFloat(a.Threshold),
		Tags:           tags,
		TenantID:       a.TenantID,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt.UnixNano(),
		UpdatedAt:      a.UpdatedAt.UnixNano(),
		AcknowledgedAt: nullNanos(a.AcknowledgedAt),
		AcknowledgedBy: a.AcknowledgedBy,
		ResolvedAt:     nullNanos(a.ResolvedAt),
		ResolvedBy:     a.ResolvedBy,
		Resolution:     a.Resolution,
	}, nil
}

func rowsToAlerts(rows []models.Alert) ([]*monitoring.Alert, error) {
	out := make([]*monitoring.Alert, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		alert := &monitoring.Alert{
			ID:             row.ID,
			RuleID:         row.RuleID,
			Title:          row.Title,
			Message:        row.Message,
			Severity:       monitoring.AlertSeverity(row.Severity),
			Source:         monitoring.AlertSource(row.Source),
			Component:      row.Component,
			Metric:         row.Metric,
			CurrentValue:   floatPtr(row.CurrentValue),
			Threshold:      floatPtr(row.Threshold),
			TenantID:       row.TenantID,
			Status:         monitoring.AlertStatus(row.Status),
			CreatedAt:      fromNanos(row.CreatedAt),
			UpdatedAt:      fromNanos(row.UpdatedAt),
			AcknowledgedAt: timePtr(row.AcknowledgedAt),
			AcknowledgedBy: row.AcknowledgedBy,
			ResolvedAt:     timePtr(row.ResolvedAt),
			ResolvedBy:     row.ResolvedBy,
			Resolution:     row.Resolution,
		}
		if err := decodeJSON(row.Tags, &alert.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags of alert %s: %w", row.ID, err)
		}
		out = append(out, alert)
	}
	return out, nil
}

func incidentToRow(i *monitoring.IncidentCorrelation) (*models.Incident, error) {
	alertIDs, err := encodeJSON(i.AlertIDs, "[]")
	if err != nil {
		return nil, err
	}
	return &models.Incident{
		ID:         i.ID,
		Title:      i.Title,
		Component:  i.Component,
		TenantID:   i.TenantID,
		Status:     string(i.Status),
		Severity:   string(i.Severity),
		AlertIDs:   alertIDs,
		RootCause:  i.RootCause,
		Resolution: i.Resolution,
		CreatedAt:  i.CreatedAt.UnixNano(),
		UpdatedAt:  i.UpdatedAt.UnixNano(),
		ResolvedAt: nullNanos(i.ResolvedAt),
	}, nil
}

func rowToIncident(row *models.Incident) (*monitoring.IncidentCorrelation, error) {
	incident := &monitoring.IncidentCorrelation{
		ID:         row.ID,
		Title:      row.Title,
		Component:  row.Component,
		TenantID:   row.TenantID,
		Status:     monitoring.IncidentStatus(row.Status),
		Severity:   monitoring.AlertSeverity(row.Severity),
		RootCause:  row.RootCause,
		Resolution: row.Resolution,
		CreatedAt:  fromNanos(row.CreatedAt),
		UpdatedAt:  fromNanos(row.UpdatedAt),
		ResolvedAt: timePtr(row.ResolvedAt),
	}
	if err := decodeJSON(row.AlertIDs, &incident.AlertIDs); err != nil {
		return nil, fmt.Errorf("failed to decode incident %s: %w", row.ID, err)
	}
	return incident, nil
}

func encodeJSON(v interface{}, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

func decodeJSON(data string, v interface{}) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
