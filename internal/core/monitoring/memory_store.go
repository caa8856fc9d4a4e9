package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used when no database is configured
// and in tests
type MemoryStore struct {
	mu            sync.RWMutex
	clock         Clock
	rules         map[string]*AlertRule
	alerts        map[string]*Alert
	order         []string
	notifications []*AlertNotification
	incidents     map[string]*IncidentCorrelation
	suppressions  map[string]*Suppression
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:        SystemClock(),
		rules:        make(map[string]*AlertRule),
		alerts:       make(map[string]*Alert),
		incidents:    make(map[string]*IncidentCorrelation),
		suppressions: make(map[string]*Suppression),
	}
}

// SetClock overrides the clock used for metric windows
func (s *MemoryStore) SetClock(clock Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *MemoryStore) SaveAlertRule(_ context.Context, rule *AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *rule
	r.Tags = copyTags(rule.Tags)
	s.rules[rule.ID] = &r
	return nil
}

func (s *MemoryStore) LoadEnabledRules(_ context.Context) ([]*AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AlertRule
	for _, rule := range s.rules {
		if rule.Enabled {
			r := *rule
			out = append(out, &r)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteAlertRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

// SaveAlert stores a new alert occurrence. Alert ids are fingerprints and
// repeat after a resolve, so history is kept per occurrence.
func (s *MemoryStore) SaveAlert(_ context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := occurrenceKey(alert)
	if _, ok := s.alerts[key]; !ok {
		s.order = append(s.order, key)
	}
	s.alerts[key] = alert.clone()
	return nil
}

func (s *MemoryStore) UpdateAlert(ctx context.Context, alert *Alert) error {
	return s.SaveAlert(ctx, alert)
}

func (s *MemoryStore) LoadActiveAlerts(_ context.Context) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Alert
	for _, key := range s.order {
		if a := s.alerts[key]; a.IsActive() {
			out = append(out, a.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveNotification(_ context.Context, n *AlertNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	s.notifications = append(s.notifications, &c)
	return nil
}

// Notifications returns recorded notifications for an alert, oldest first
func (s *MemoryStore) Notifications(alertID string) []*AlertNotification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AlertNotification
	for _, n := range s.notifications {
		if alertID == "" || n.AlertID == alertID {
			c := *n
			out = append(out, &c)
		}
	}
	return out
}

func (s *MemoryStore) SaveIncident(_ context.Context, incident *IncidentCorrelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[incident.ID] = incident.clone()
	return nil
}

func (s *MemoryStore) UpdateIncident(ctx context.Context, incident *IncidentCorrelation) error {
	return s.SaveIncident(ctx, incident)
}

func (s *MemoryStore) LoadOpenIncidents(_ context.Context) ([]*IncidentCorrelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*IncidentCorrelation
	for _, incident := range s.incidents {
		if incident.Status != IncidentResolved {
			out = append(out, incident.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Incident returns a stored incident by id
func (s *MemoryStore) Incident(id string) (*IncidentCorrelation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	incident, ok := s.incidents[id]
	if !ok {
		return nil, false
	}
	return incident.clone(), true
}

func (s *MemoryStore) SaveSuppression(_ context.Context, suppression *Suppression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *suppression
	c.Tags = copyTags(suppression.Tags)
	s.suppressions[suppression.ID] = &c
	return nil
}

func (s *MemoryStore) QuerySuppressions(_ context.Context, activeAt time.Time) ([]*Suppression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Suppression
	for _, sup := range s.suppressions {
		if activeAt.Before(sup.ExpiresAt) {
			c := *sup
			c.Tags = copyTags(sup.Tags)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) QueryAlertHistory(_ context.Context, filter AlertHistoryFilter) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Alert
	// newest first
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.alerts[s.order[i]]
		if !filter.matches(a) {
			continue
		}
		out = append(out, a.clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) QueryAlertMetrics(_ context.Context, window time.Duration) (*AlertMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]*Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		alerts = append(alerts, a)
	}
	return ComputeAlertMetrics(alerts, window, s.clock.Now(), 0), nil
}

func (f AlertHistoryFilter) matches(a *Alert) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Component != "" && a.Component != f.Component {
		return false
	}
	if f.TenantID != "" && a.TenantID != f.TenantID {
		return false
	}
	if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && a.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

func occurrenceKey(a *Alert) string {
	return a.ID + "@" + a.CreatedAt.UTC().Format(time.RFC3339Nano)
}
