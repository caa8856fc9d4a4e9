package monitoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AlertingConfig contains alert manager configuration
type AlertingConfig struct {
	Enabled              bool          `json:"enabled"`
	EvaluationInterval   time.Duration `json:"evaluation_interval"`
	MetricWindow         time.Duration `json:"metric_window"`
	CorrelationWindow    time.Duration `json:"correlation_window"`
	CorrelationThreshold int           `json:"correlation_threshold"`
	MaxConcurrentEvals   int           `json:"max_concurrent_evals"`
	// DefaultActions run for fires that carry no rule, such as external alerts.
	DefaultActions    []AlertAction     `json:"default_actions,omitempty"`
	DefaultEscalation *EscalationPolicy `json:"default_escalation,omitempty"`
}

// DefaultAlertingConfig returns default alerting configuration
func DefaultAlertingConfig() *AlertingConfig {
	return &AlertingConfig{
		Enabled:              true,
		EvaluationInterval:   30 * time.Second,
		MetricWindow:         5 * time.Minute,
		CorrelationWindow:    5 * time.Minute,
		CorrelationThreshold: 2,
		MaxConcurrentEvals:   10,
	}
}

// Dependencies are the collaborators injected into an AlertManager. Only
// Source is required; the rest fall back to in-process defaults.
type Dependencies struct {
	Source    MetricSource
	Router    *NotificationRouter
	Store     Store
	Clock     Clock
	Publisher EventPublisher
	Recorder  Recorder
	Logger    *logrus.Logger
}

// AlertManager owns the alert lifecycle: evaluation, deduplication,
// suppression, escalation, correlation and notification
type AlertManager struct {
	config    *AlertingConfig
	source    MetricSource
	router    *NotificationRouter
	store     Store
	clock     Clock
	publisher EventPublisher
	recorder  Recorder
	logger    *logrus.Logger

	mu sync.Mutex
	// persistMu orders store writes; see persistLocked
	persistMu    sync.Mutex
	rules        map[string]*AlertRule
	active       map[string]*Alert
	seq          uint64
	suppressions *suppressionSet
	escalations  *escalationScheduler
	correlator   *correlator
	evaluator    *ruleEvaluator
	ruleMutes    *suppressionEvaluator

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAlertManager creates an alert manager
func NewAlertManager(config *AlertingConfig, deps Dependencies) *AlertManager {
	if config == nil {
		config = DefaultAlertingConfig()
	}
	if config.EvaluationInterval <= 0 {
		config.EvaluationInterval = 30 * time.Second
	}
	if config.MetricWindow <= 0 {
		config.MetricWindow = 5 * time.Minute
	}
	if config.CorrelationWindow <= 0 {
		config.CorrelationWindow = 5 * time.Minute
	}
	if config.MaxConcurrentEvals <= 0 {
		config.MaxConcurrentEvals = 1
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	store := deps.Store
	if store == nil {
		store = NewMemoryStore()
	}
	router := deps.Router
	if router == nil {
		router = NewNotificationRouter(store, logger)
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	router.SetClock(clock)
	router.SetRecorder(recorder)

	m := &AlertManager{
		config:       config,
		source:       deps.Source,
		router:       router,
		store:        store,
		clock:        clock,
		publisher:    publisher,
		recorder:     recorder,
		logger:       logger,
		rules:        make(map[string]*AlertRule),
		active:       make(map[string]*Alert),
		suppressions: newSuppressionSet(clock),
		escalations:  newEscalationScheduler(clock),
		correlator:   newCorrelator(config.CorrelationWindow, config.CorrelationThreshold),
		evaluator:    newRuleEvaluator(),
		stopChan:     make(chan struct{}),
	}
	m.ruleMutes = &suppressionEvaluator{
		source:          deps.Source,
		window:          config.MetricWindow,
		clock:           clock,
		componentActive: m.hasActiveComponent,
		logger:          logger,
	}
	return m
}

// Start restores persisted state and launches the evaluation loop
func (m *AlertManager) Start(ctx context.Context) error {
	if err := m.restore(ctx); err != nil {
		return fmt.Errorf("failed to restore alert state: %w", err)
	}

	if !m.config.Enabled {
		m.logger.Info("Alert evaluation is disabled")
		return nil
	}

	m.logger.WithField("interval", m.config.EvaluationInterval).Info("Starting alert manager")

	m.wg.Add(1)
	go m.evaluationLoop(ctx)
	return nil
}

// Stop halts evaluation and cancels every pending timer
func (m *AlertManager) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("Stopping alert manager")
		close(m.stopChan)
	})
	m.wg.Wait()

	m.mu.Lock()
	m.escalations.stopAll()
	m.suppressions.stopAll()
	m.mu.Unlock()
}

func (m *AlertManager) restore(ctx context.Context) error {
	rules, err := m.store.LoadEnabledRules(ctx)
	if err != nil {
		return err
	}
	alerts, err := m.store.LoadActiveAlerts(ctx)
	if err != nil {
		return err
	}
	now := m.clock.Now()
	suppressions, err := m.store.QuerySuppressions(ctx, now)
	if err != nil {
		return err
	}
	incidents, err := m.store.LoadOpenIncidents(ctx)
	if err != nil {
		return err
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].CreatedAt.Before(alerts[j].CreatedAt) })

	m.mu.Lock()
	for _, rule := range rules {
		m.rules[rule.ID] = rule
	}
	for _, alert := range alerts {
		if !alert.IsActive() {
			continue
		}
		m.seq++
		alert.seq = m.seq
		m.active[alert.ID] = alert
	}
	for _, s := range suppressions {
		if now.Before(s.ExpiresAt) {
			m.suppressions.add(s, m.expireSuppression)
		}
	}
	for _, incident := range incidents {
		if incident.Status != IncidentResolved {
			m.correlator.incidents[incident.ID] = incident
		}
	}
	// members may have resolved while the incident row was not yet updated
	var settled []*IncidentCorrelation
	for _, incident := range m.correlator.settle(m.active, now) {
		settled = append(settled, incident.clone())
	}
	m.mu.Unlock()

	for _, incident := range settled {
		if err := m.store.UpdateIncident(ctx, incident); err != nil {
			m.logger.WithError(err).WithField("incident_id", incident.ID).Error("Failed to update incident")
		}
	}

	m.logger.WithFields(logrus.Fields{
		"rules":        len(rules),
		"alerts":       len(alerts),
		"suppressions": len(suppressions),
		"incidents":    len(incidents) - len(settled),
	}).Info("Restored alert state")
	return nil
}

func (m *AlertManager) evaluationLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.EvaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.EvaluateOnce(ctx)
		}
	}
}

// EvaluateOnce runs a single evaluation pass over every enabled rule
func (m *AlertManager) EvaluateOnce(ctx context.Context) {
	started := time.Now()

	m.mu.Lock()
	rules := make([]*AlertRule, 0, len(m.rules))
	for _, rule := range m.rules {
		if rule.Enabled {
			rules = append(rules, rule)
		}
	}
	m.mu.Unlock()

	semaphore := make(chan struct{}, m.config.MaxConcurrentEvals)
	var wg sync.WaitGroup

	for _, rule := range rules {
		semaphore <- struct{}{}
		wg.Add(1)

		go func(r *AlertRule) {
			defer func() {
				<-semaphore
				wg.Done()
			}()

			m.evaluateRule(ctx, r)
		}(rule)
	}

	wg.Wait()
	m.recorder.EvaluationCompleted(time.Since(started), len(rules))
}

func (m *AlertManager) evaluateRule(ctx context.Context, rule *AlertRule) {
	if m.source == nil {
		return
	}

	value, err := m.source.GetLatestValue(ctx, rule.Metric, rule.TenantID, m.config.MetricWindow)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"rule_id": rule.ID,
			"metric":  rule.Metric,
		}).Error("Failed to fetch metric for rule")
		return
	}

	m.mu.Lock()
	// the rule may have been replaced while the fetch ran
	if current, ok := m.rules[rule.ID]; !ok || current != rule {
		m.mu.Unlock()
		return
	}
	fires := m.evaluator.observe(rule, value, m.clock.Now())
	m.mu.Unlock()

	for _, req := range fires {
		if muted, kind := m.ruleMutes.suppresses(ctx, rule); muted {
			m.logger.WithFields(logrus.Fields{
				"rule_id":          rule.ID,
				"suppression_type": kind,
			}).Debug("Rule fire suppressed")
			continue
		}
		if _, _, err := m.fire(ctx, req, rule); err != nil {
			m.logger.WithError(err).WithField("rule_id", rule.ID).Error("Failed to fire alert")
		}
	}
}

// CreateRule validates and registers a rule, replacing any rule with the same id
func (m *AlertManager) CreateRule(ctx context.Context, rule *AlertRule) (*AlertRule, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	stored := *rule
	stored.Tags = copyTags(rule.Tags)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	m.mu.Lock()
	if prev, ok := m.rules[stored.ID]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.rules[stored.ID] = &stored
	m.evaluator.forget(stored.ID)
	saved := stored
	m.persistLocked(func() {
		if err := m.store.SaveAlertRule(ctx, &saved); err != nil {
			m.logger.WithError(err).WithField("rule_id", saved.ID).Error("Failed to save alert rule")
		}
	})

	m.logger.WithFields(logrus.Fields{
		"rule_id": stored.ID,
		"name":    stored.Name,
		"metric":  stored.Metric,
	}).Info("Added alert rule")

	out := stored
	return &out, nil
}

// GetRules returns all registered rules ordered by name
func (m *AlertManager) GetRules() []*AlertRule {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules := make([]*AlertRule, 0, len(m.rules))
	for _, rule := range m.rules {
		r := *rule
		rules = append(rules, &r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// DeleteRule removes a rule and its pending condition windows. Alerts it
// already fired stay active.
func (m *AlertManager) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.rules[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(m.rules, id)
	m.evaluator.forget(id)
	m.persistLocked(func() {
		if err := m.store.DeleteAlertRule(ctx, id); err != nil {
			m.logger.WithError(err).WithField("rule_id", id).Error("Failed to delete alert rule")
		}
	})

	m.logger.WithField("rule_id", id).Info("Deleted alert rule")
	return nil
}

// persistLocked runs write with m.mu released but m.persistMu held, so
// store writes land in the same order as the in-memory mutations that
// produced them. Callers hold m.mu; it is unlocked on return. write must
// not take m.mu.
func (m *AlertManager) persistLocked(write func()) {
	m.persistMu.Lock()
	m.mu.Unlock()
	defer m.persistMu.Unlock()
	write()
}

// FireOutcome says what a fire did to the active set
type FireOutcome string

const (
	FireCreated    FireOutcome = "created"
	FireUpdated    FireOutcome = "updated"
	FireSuppressed FireOutcome = "suppressed"
)

// FireAlert records one firing observation. A suppressed fire returns the
// existing alert (or an unsaved alert with status suppressed) and causes no
// side effects. A fire on an already active alert only refreshes its value.
func (m *AlertManager) FireAlert(ctx context.Context, req FireRequest) (*Alert, error) {
	alert, _, err := m.FireAlertWithOutcome(ctx, req)
	return alert, err
}

// FireAlertWithOutcome is FireAlert that also reports whether the fire
// created an alert, refreshed an active one or was suppressed
func (m *AlertManager) FireAlertWithOutcome(ctx context.Context, req FireRequest) (*Alert, FireOutcome, error) {
	var rule *AlertRule
	if req.RuleID != "" {
		m.mu.Lock()
		rule = m.rules[req.RuleID]
		m.mu.Unlock()
	}

	if rule != nil {
		if muted, _ := m.ruleMutes.suppresses(ctx, rule); muted {
			if err := validateFire(&req); err != nil {
				return nil, "", err
			}
			id := Fingerprint(req.Component, req.Metric, req.Tags)
			m.mu.Lock()
			existing, ok := m.active[id]
			var out *Alert
			if ok {
				out = existing.clone()
			}
			m.mu.Unlock()
			if out == nil {
				out = m.suppressedAlert(req, id)
			}
			return out, FireSuppressed, nil
		}
	}
	return m.fire(ctx, req, rule)
}

func validateFire(req *FireRequest) error {
	if req.Component == "" {
		return fmt.Errorf("%w: component is required", ErrInvalidRule)
	}
	if !req.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidRule, req.Severity)
	}
	if req.Source == "" {
		req.Source = SourceExternal
	}
	if !req.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRule, req.Source)
	}
	if req.Title == "" {
		req.Title = req.Component
		if req.Metric != "" {
			req.Title = req.Component + " " + req.Metric
		}
	}
	return nil
}

func (m *AlertManager) suppressedAlert(req FireRequest, id string) *Alert {
	now := m.clock.Now()
	alert := newAlert(req, id, now)
	alert.Status = StatusSuppressed
	return alert
}

func newAlert(req FireRequest, id string, now time.Time) *Alert {
	alert := &Alert{
		ID:        id,
		RuleID:    req.RuleID,
		Title:     req.Title,
		Message:   req.Message,
		Severity:  req.Severity,
		Source:    req.Source,
		Component: req.Component,
		Metric:    req.Metric,
		Tags:      copyTags(req.Tags),
		TenantID:  req.TenantID,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.CurrentValue != nil {
		v := *req.CurrentValue
		alert.CurrentValue = &v
	}
	if req.Threshold != nil {
		v := *req.Threshold
		alert.Threshold = &v
	}
	return alert
}

func (m *AlertManager) fire(ctx context.Context, req FireRequest, rule *AlertRule) (*Alert, FireOutcome, error) {
	if err := validateFire(&req); err != nil {
		return nil, "", err
	}

	id := Fingerprint(req.Component, req.Metric, req.Tags)
	now := m.clock.Now()

	m.mu.Lock()

	existing, exists := m.active[id]

	if m.suppressions.isSuppressed(req.Component, req.Metric, req.Tags) {
		var out *Alert
		if exists {
			out = existing.clone()
		} else {
			out = m.suppressedAlert(req, id)
		}
		m.mu.Unlock()

		m.logger.WithFields(logrus.Fields{
			"alert_id":  id,
			"component": req.Component,
			"metric":    req.Metric,
		}).Debug("Alert suppressed")
		return out, FireSuppressed, nil
	}

	if exists {
		if req.CurrentValue != nil {
			v := *req.CurrentValue
			existing.CurrentValue = &v
		}
		existing.UpdatedAt = now
		out := existing.clone()
		m.persistLocked(func() {
			if err := m.store.UpdateAlert(ctx, out); err != nil {
				m.logger.WithError(err).WithField("alert_id", id).Error("Failed to update alert")
			}
		})
		return out, FireUpdated, nil
	}

	alert := newAlert(req, id, now)
	m.seq++
	alert.seq = m.seq
	m.active[id] = alert

	actions, policy := m.actionsFor(alert)
	if policy != nil {
		m.escalations.start(id, policy, m.escalate)
	}
	incident, created := m.correlator.correlate(alert, m.active, now)
	if incident != nil {
		incident = incident.clone()
	}
	out := alert.clone()
	counts := m.activeCounts()
	m.persistLocked(func() {
		if err := m.store.SaveAlert(ctx, out); err != nil {
			m.logger.WithError(err).WithField("alert_id", id).Error("Failed to save alert")
		}
		if incident != nil {
			m.storeIncident(ctx, incident, created)
		}
	})

	m.logger.WithFields(logrus.Fields{
		"alert_id":  id,
		"rule_id":   out.RuleID,
		"component": out.Component,
		"metric":    out.Metric,
		"severity":  out.Severity,
	}).Warn("Alert fired")

	m.recorder.AlertFired(out.Severity, out.Source)
	m.recorder.ActiveAlerts(counts)
	m.publisher.Publish(Event{Type: EventAlertFired, Timestamp: now, Alert: out})

	m.router.ExecuteActions(ctx, out, actions, KindAlert, 0)

	if incident != nil {
		m.announceIncident(incident, created)
	}

	return out, FireCreated, nil
}

// storeIncident persists an incident change. Callers hold m.persistMu.
func (m *AlertManager) storeIncident(ctx context.Context, incident *IncidentCorrelation, created bool) {
	if created {
		if err := m.store.SaveIncident(ctx, incident); err != nil {
			m.logger.WithError(err).WithField("incident_id", incident.ID).Error("Failed to save incident")
		}
		return
	}
	if err := m.store.UpdateIncident(ctx, incident); err != nil {
		m.logger.WithError(err).WithField("incident_id", incident.ID).Error("Failed to update incident")
	}
}

func (m *AlertManager) announceIncident(incident *IncidentCorrelation, created bool) {
	fields := logrus.Fields{
		"incident_id": incident.ID,
		"component":   incident.Component,
		"alerts":      len(incident.AlertIDs),
		"severity":    incident.Severity,
	}

	if created {
		m.logger.WithFields(fields).Warn("Incident opened")
		m.recorder.IncidentOpened(incident.Severity)
		m.publisher.Publish(Event{Type: EventIncidentOpened, Timestamp: incident.UpdatedAt, Incident: incident})
		return
	}

	eventType := EventIncidentUpdated
	if incident.Status == IncidentResolved {
		eventType = EventIncidentResolved
		m.logger.WithFields(fields).Info("Incident resolved")
	} else {
		m.logger.WithFields(fields).Info("Incident updated")
	}
	m.publisher.Publish(Event{Type: eventType, Timestamp: incident.UpdatedAt, Incident: incident})
}

// actionsFor returns the alert's actions and escalation policy. Callers hold m.mu.
func (m *AlertManager) actionsFor(alert *Alert) ([]AlertAction, *EscalationPolicy) {
	if rule, ok := m.rules[alert.RuleID]; ok && alert.RuleID != "" {
		return append([]AlertAction(nil), rule.Actions...), rule.Escalation
	}
	return append([]AlertAction(nil), m.config.DefaultActions...), m.config.DefaultEscalation
}

// activeCounts tallies active alerts by severity. Callers hold m.mu.
func (m *AlertManager) activeCounts() map[AlertSeverity]int {
	counts := map[AlertSeverity]int{
		SeverityLow:      0,
		SeverityMedium:   0,
		SeverityHigh:     0,
		SeverityCritical: 0,
	}
	for _, a := range m.active {
		counts[a.Severity]++
	}
	return counts
}

// escalate runs on a timer goroutine
func (m *AlertManager) escalate(key escalationKey, step EscalationStep) {
	m.mu.Lock()
	if !m.escalations.take(key) {
		m.mu.Unlock()
		return
	}
	alert, ok := m.active[key.alertID]
	if !ok || alert.Status != StatusOpen {
		m.mu.Unlock()
		return
	}
	out := alert.clone()
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"alert_id": key.alertID,
		"step":     key.step,
		"severity": out.Severity,
	}).Warn("Escalating alert")

	m.recorder.EscalationExecuted(key.step)
	m.publisher.Publish(Event{Type: EventAlertEscalated, Timestamp: m.clock.Now(), Alert: out, Step: key.step})
	m.router.ExecuteActions(context.Background(), out, step.Actions, KindEscalation, key.step)
}

// StartEscalation arms policy for an open alert, replacing any steps that
// share a step number
func (m *AlertManager) StartEscalation(alertID string, policy *EscalationPolicy) error {
	if policy == nil {
		return fmt.Errorf("%w: escalation policy is required", ErrInvalidRule)
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.active[alertID]
	if !ok || alert.Status != StatusOpen {
		return fmt.Errorf("%w: %s", ErrNotFoundOrInvalidState, alertID)
	}
	m.escalations.start(alertID, policy, m.escalate)
	return nil
}

// StopEscalation cancels every pending step of the alert. Safe to repeat.
func (m *AlertManager) StopEscalation(alertID string) {
	m.mu.Lock()
	cancelled := m.escalations.stop(alertID)
	m.mu.Unlock()

	if cancelled > 0 {
		m.logger.WithFields(logrus.Fields{
			"alert_id":  alertID,
			"cancelled": cancelled,
		}).Debug("Escalation stopped")
	}
}

// AcknowledgeAlert moves an open alert to acknowledged and cancels its escalation
func (m *AlertManager) AcknowledgeAlert(ctx context.Context, alertID, userID string) (*Alert, error) {
	now := m.clock.Now()

	m.mu.Lock()
	alert, ok := m.active[alertID]
	if !ok || alert.Status != StatusOpen {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFoundOrInvalidState, alertID)
	}

	alert.Status = StatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = userID
	alert.UpdatedAt = now
	m.escalations.stop(alertID)
	actions, _ := m.actionsFor(alert)
	out := alert.clone()
	m.persistLocked(func() {
		if err := m.store.UpdateAlert(ctx, out); err != nil {
			m.logger.WithError(err).WithField("alert_id", alertID).Error("Failed to update alert")
		}
	})

	m.logger.WithFields(logrus.Fields{
		"alert_id": alertID,
		"user_id":  userID,
	}).Info("Alert acknowledged")

	m.publisher.Publish(Event{Type: EventAlertAcknowledged, Timestamp: now, Alert: out})
	m.router.ExecuteActions(ctx, out, actions, KindAcknowledgement, 0)
	return out, nil
}

// ResolveAlert closes an active alert and auto-resolves incidents left
// without active members
func (m *AlertManager) ResolveAlert(ctx context.Context, alertID, userID, resolution string) (*Alert, error) {
	now := m.clock.Now()

	m.mu.Lock()
	alert, ok := m.active[alertID]
	if !ok || !alert.IsActive() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFoundOrInvalidState, alertID)
	}

	alert.Status = StatusResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = userID
	alert.Resolution = resolution
	alert.UpdatedAt = now
	delete(m.active, alertID)
	m.escalations.stop(alertID)
	actions, _ := m.actionsFor(alert)

	var incidents []*IncidentCorrelation
	for _, incident := range m.correlator.resolveFor(alertID, m.active, now) {
		incidents = append(incidents, incident.clone())
	}
	out := alert.clone()
	counts := m.activeCounts()
	m.persistLocked(func() {
		if err := m.store.UpdateAlert(ctx, out); err != nil {
			m.logger.WithError(err).WithField("alert_id", alertID).Error("Failed to update alert")
		}
		for _, incident := range incidents {
			m.storeIncident(ctx, incident, false)
		}
	})

	m.logger.WithFields(logrus.Fields{
		"alert_id": alertID,
		"user_id":  userID,
	}).Info("Alert resolved")

	m.recorder.ActiveAlerts(counts)
	m.publisher.Publish(Event{Type: EventAlertResolved, Timestamp: now, Alert: out})
	m.router.ExecuteActions(ctx, out, actions, KindResolution, 0)

	for _, incident := range incidents {
		m.announceIncident(incident, false)
	}
	return out, nil
}

// SuppressAlerts mutes future fires matching component, metric and tags
// for the requested duration. Existing alerts are left untouched.
func (m *AlertManager) SuppressAlerts(ctx context.Context, req SuppressRequest) (*Suppression, error) {
	if req.Component == "" {
		return nil, fmt.Errorf("%w: component is required", ErrInvalidRule)
	}
	ttl, err := ParseDuration(req.Duration)
	if err != nil {
		return nil, err
	}
	if ttl == 0 {
		return nil, fmt.Errorf("%w: %q is empty", ErrInvalidDuration, req.Duration)
	}

	now := m.clock.Now()
	s := &Suppression{
		ID:        uuid.New().String(),
		Component: req.Component,
		Metric:    req.Metric,
		Tags:      copyTags(req.Tags),
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	m.mu.Lock()
	m.suppressions.add(s, m.expireSuppression)
	m.persistLocked(func() {
		if err := m.store.SaveSuppression(ctx, s); err != nil {
			m.logger.WithError(err).WithField("suppression_id", s.ID).Error("Failed to save suppression")
		}
	})

	m.logger.WithFields(logrus.Fields{
		"suppression_id": s.ID,
		"component":      s.Component,
		"metric":         s.Metric,
		"expires_at":     s.ExpiresAt,
		"reason":         s.Reason,
	}).Info("Alerts suppressed")

	out := *s
	out.Tags = copyTags(s.Tags)
	return &out, nil
}

func (m *AlertManager) expireSuppression(fingerprint string, s *Suppression) {
	m.mu.Lock()
	removed := m.suppressions.remove(fingerprint, s)
	m.mu.Unlock()

	if removed {
		m.logger.WithFields(logrus.Fields{
			"suppression_id": s.ID,
			"component":      s.Component,
		}).Info("Suppression expired")
	}
}

// IsSuppressed reports whether a fire with these attributes would be muted
func (m *AlertManager) IsSuppressed(component, metric string, tags map[string]string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressions.isSuppressed(component, metric, tags)
}

// GetSuppressions returns the unexpired suppressions
func (m *AlertManager) GetSuppressions() []*Suppression {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressions.list()
}

// GetActiveAlerts returns active alerts, optionally for one tenant, by
// severity descending then firing order
func (m *AlertManager) GetActiveAlerts(tenantID string) []*Alert {
	m.mu.Lock()
	alerts := make([]*Alert, 0, len(m.active))
	for _, a := range m.active {
		if tenantID != "" && a.TenantID != tenantID {
			continue
		}
		alerts = append(alerts, a.clone())
	}
	m.mu.Unlock()

	sort.SliceStable(alerts, func(i, j int) bool {
		wi, wj := alerts[i].Severity.Weight(), alerts[j].Severity.Weight()
		if wi != wj {
			return wi > wj
		}
		return alerts[i].seq < alerts[j].seq
	})
	return alerts
}

// ActiveCounts returns the number of active alerts per severity
func (m *AlertManager) ActiveCounts() map[AlertSeverity]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCounts()
}

func (m *AlertManager) hasActiveComponent(component, tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.active {
		if a.Component == component && a.TenantID == tenantID {
			return true
		}
	}
	return false
}

// GetIncidents returns the open incidents, optionally for one tenant
func (m *AlertManager) GetIncidents(tenantID string) []*IncidentCorrelation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.correlator.list(tenantID)
}

// UpdateIncident applies an operator status change to an open incident
func (m *AlertManager) UpdateIncident(ctx context.Context, id string, status IncidentStatus, rootCause, resolution string) (*IncidentCorrelation, error) {
	m.mu.Lock()
	incident, err := m.correlator.update(id, status, rootCause, resolution, m.clock.Now())
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	out := incident.clone()
	m.persistLocked(func() {
		m.storeIncident(ctx, out, false)
	})

	m.announceIncident(out, false)
	return out, nil
}

// GetAlertHistory queries the store for past and present alerts
func (m *AlertManager) GetAlertHistory(ctx context.Context, filter AlertHistoryFilter) ([]*Alert, error) {
	return m.store.QueryAlertHistory(ctx, filter)
}

// GetAlertMetrics aggregates alerts created within window, keeping the topN
// noisiest components
func (m *AlertManager) GetAlertMetrics(ctx context.Context, window time.Duration, topN int) (*AlertMetrics, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive", ErrInvalidDuration)
	}
	metrics, err := m.store.QueryAlertMetrics(ctx, window)
	if err != nil {
		return nil, err
	}
	if topN > 0 && len(metrics.TopSources) > topN {
		metrics.TopSources = metrics.TopSources[:topN]
	}
	return metrics, nil
}
