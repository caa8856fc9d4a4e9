package monitoring

import (
	"sort"
	"time"
)

// AlertMetrics aggregates alerts created within a trailing window
type AlertMetrics struct {
	Window           string                `json:"window"`
	TotalAlerts      int                   `json:"total_alerts"`
	BySeverity       map[AlertSeverity]int `json:"by_severity"`
	ByComponent      map[string]int        `json:"by_component"`
	ByStatus         map[AlertStatus]int   `json:"by_status"`
	MTTR             time.Duration         `json:"-"`
	MTTRSeconds      float64               `json:"mttr_seconds"`
	AlertRatePerHour float64               `json:"alert_rate_per_hour"`
	TopSources       []ComponentCount      `json:"top_sources"`
}

type ComponentCount struct {
	Component string `json:"component"`
	Count     int    `json:"count"`
}

// ComputeAlertMetrics aggregates the alerts created in (now-window, now].
// MTTR averages resolved alerts only. topN <= 0 keeps every component.
func ComputeAlertMetrics(alerts []*Alert, window time.Duration, now time.Time, topN int) *AlertMetrics {
	m := &AlertMetrics{
		Window:      window.String(),
		BySeverity:  make(map[AlertSeverity]int),
		ByComponent: make(map[string]int),
		ByStatus:    make(map[AlertStatus]int),
		TopSources:  []ComponentCount{},
	}

	cutoff := now.Add(-window)
	var repair time.Duration
	resolved := 0

	for _, a := range alerts {
		if a.CreatedAt.Before(cutoff) || a.CreatedAt.After(now) {
			continue
		}
		m.TotalAlerts++
		m.BySeverity[a.Severity]++
		m.ByComponent[a.Component]++
		m.ByStatus[a.Status]++

		if a.Status == StatusResolved && a.ResolvedAt != nil {
			repair += a.ResolvedAt.Sub(a.CreatedAt)
			resolved++
		}
	}

	if resolved > 0 {
		m.MTTR = repair / time.Duration(resolved)
		m.MTTRSeconds = m.MTTR.Seconds()
	}
	if hours := window.Hours(); hours > 0 {
		m.AlertRatePerHour = float64(m.TotalAlerts) / hours
	}

	for component, count := range m.ByComponent {
		m.TopSources = append(m.TopSources, ComponentCount{Component: component, Count: count})
	}
	sort.Slice(m.TopSources, func(i, j int) bool {
		if m.TopSources[i].Count != m.TopSources[j].Count {
			return m.TopSources[i].Count > m.TopSources[j].Count
		}
		return m.TopSources[i].Component < m.TopSources[j].Component
	})
	if topN > 0 && len(m.TopSources) > topN {
		m.TopSources = m.TopSources[:topN]
	}
	return m
}
