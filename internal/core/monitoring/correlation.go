package monitoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

const autoResolution = "All correlated alerts resolved"

// correlator groups active alerts of one component into incidents. It is
// not safe for concurrent use; the AlertManager lock guards it.
type correlator struct {
	window    time.Duration
	threshold int
	incidents map[string]*IncidentCorrelation
}

func newCorrelator(window time.Duration, threshold int) *correlator {
	if threshold < 2 {
		threshold = 2
	}
	return &correlator{
		window:    window,
		threshold: threshold,
		incidents: make(map[string]*IncidentCorrelation),
	}
}

// correlate looks for active alerts related to alert. It returns the
// incident that now contains alert and whether it was newly created, or nil
// when the threshold is not met.
func (c *correlator) correlate(alert *Alert, active map[string]*Alert, now time.Time) (*IncidentCorrelation, bool) {
	cutoff := now.Add(-c.window)

	related := []*Alert{alert}
	for id, other := range active {
		if id == alert.ID || !other.IsActive() {
			continue
		}
		if other.Component != alert.Component || other.TenantID != alert.TenantID {
			continue
		}
		if other.CreatedAt.Before(cutoff) {
			continue
		}
		related = append(related, other)
	}

	if len(related) < c.threshold {
		return nil, false
	}

	if incident := c.openIncidentFor(alert.Component, alert.TenantID); incident != nil {
		changed := false
		for _, a := range related {
			if !incident.contains(a.ID) {
				incident.AlertIDs = append(incident.AlertIDs, a.ID)
				changed = true
			}
			if sev := MaxSeverity(incident.Severity, a.Severity); sev != incident.Severity {
				incident.Severity = sev
				changed = true
			}
		}
		if !changed {
			return nil, false
		}
		incident.UpdatedAt = now
		return incident, false
	}

	// oldest first so the ids read in firing order
	sort.SliceStable(related, func(i, j int) bool { return related[i].seq < related[j].seq })

	incident := &IncidentCorrelation{
		ID:        uuid.New().String(),
		Title:     fmt.Sprintf("%d related alerts on %s", len(related), alert.Component),
		Component: alert.Component,
		TenantID:  alert.TenantID,
		Status:    IncidentInvestigating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, a := range related {
		incident.AlertIDs = append(incident.AlertIDs, a.ID)
		incident.Severity = MaxSeverity(incident.Severity, a.Severity)
	}
	c.incidents[incident.ID] = incident
	return incident, true
}

// resolveFor auto-resolves open incidents containing alertID once none of
// their members remain active
func (c *correlator) resolveFor(alertID string, active map[string]*Alert, now time.Time) []*IncidentCorrelation {
	var resolved []*IncidentCorrelation
	for _, incident := range c.incidents {
		if incident.Status == IncidentResolved || !incident.contains(alertID) {
			continue
		}
		if hasActiveMember(incident, active) {
			continue
		}
		resolved = append(resolved, incident)
	}
	return c.autoResolve(resolved, now)
}

// settle auto-resolves every open incident left without active members,
// as after a restart
func (c *correlator) settle(active map[string]*Alert, now time.Time) []*IncidentCorrelation {
	var resolved []*IncidentCorrelation
	for _, incident := range c.incidents {
		if incident.Status != IncidentResolved && !hasActiveMember(incident, active) {
			resolved = append(resolved, incident)
		}
	}
	return c.autoResolve(resolved, now)
}

func (c *correlator) autoResolve(incidents []*IncidentCorrelation, now time.Time) []*IncidentCorrelation {
	for _, incident := range incidents {
		incident.Status = IncidentResolved
		incident.Resolution = autoResolution
		incident.ResolvedAt = &now
		incident.UpdatedAt = now
		delete(c.incidents, incident.ID)
	}
	return incidents
}

func hasActiveMember(incident *IncidentCorrelation, active map[string]*Alert) bool {
	for _, id := range incident.AlertIDs {
		if a, ok := active[id]; ok && a.IsActive() {
			return true
		}
	}
	return false
}

func (c *correlator) openIncidentFor(component, tenantID string) *IncidentCorrelation {
	for _, incident := range c.incidents {
		if incident.Status != IncidentResolved && incident.Component == component && incident.TenantID == tenantID {
			return incident
		}
	}
	return nil
}

// update applies an operator status change
func (c *correlator) update(id string, status IncidentStatus, rootCause, resolution string, now time.Time) (*IncidentCorrelation, error) {
	incident, ok := c.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIncidentNotFound, id)
	}

	switch status {
	case "":
	case IncidentInvestigating, IncidentIdentified, IncidentMonitoring, IncidentResolved:
		incident.Status = status
	default:
		return nil, fmt.Errorf("%w: unknown incident status %q", ErrInvalidRule, status)
	}
	if rootCause != "" {
		incident.RootCause = rootCause
	}
	if resolution != "" {
		incident.Resolution = resolution
	}
	incident.UpdatedAt = now
	if incident.Status == IncidentResolved {
		incident.ResolvedAt = &now
		delete(c.incidents, id)
	}
	return incident, nil
}

func (c *correlator) list(tenantID string) []*IncidentCorrelation {
	out := make([]*IncidentCorrelation, 0, len(c.incidents))
	for _, incident := range c.incidents {
		if tenantID != "" && incident.TenantID != tenantID {
			continue
		}
		out = append(out, incident.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
