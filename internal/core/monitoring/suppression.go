package monitoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type suppressionEntry struct {
	suppression *Suppression
	timer       Timer
}

// suppressionSet holds active suppression instances keyed by fingerprint.
// It is not safe for concurrent use; the AlertManager lock guards it.
type suppressionSet struct {
	clock   Clock
	entries map[string]*suppressionEntry
}

func newSuppressionSet(clock Clock) *suppressionSet {
	return &suppressionSet{
		clock:   clock,
		entries: make(map[string]*suppressionEntry),
	}
}

// add inserts s under its fingerprint, replacing any previous instance, and
// arms expire to run when s lapses
func (ss *suppressionSet) add(s *Suppression, expire func(fingerprint string, s *Suppression)) {
	fp := Fingerprint(s.Component, s.Metric, s.Tags)
	if prev, ok := ss.entries[fp]; ok && prev.timer != nil {
		prev.timer.Stop()
	}

	entry := &suppressionEntry{suppression: s}
	ttl := s.ExpiresAt.Sub(ss.clock.Now())
	if ttl < 0 {
		ttl = 0
	}
	entry.timer = ss.clock.AfterFunc(ttl, func() { expire(fp, s) })
	ss.entries[fp] = entry
}

// remove deletes the entry only if it still holds s
func (ss *suppressionSet) remove(fingerprint string, s *Suppression) bool {
	entry, ok := ss.entries[fingerprint]
	if !ok || entry.suppression != s {
		return false
	}
	delete(ss.entries, fingerprint)
	return true
}

// isSuppressed checks the exact fingerprint first, then widens to the
// component+metric and finally the component-wide mute
func (ss *suppressionSet) isSuppressed(component, metric string, tags map[string]string) bool {
	now := ss.clock.Now()
	candidates := []string{Fingerprint(component, metric, tags)}
	if len(tags) > 0 {
		candidates = append(candidates, Fingerprint(component, metric, nil))
	}
	if metric != "" {
		candidates = append(candidates, Fingerprint(component, "", nil))
	}

	for _, fp := range candidates {
		if entry, ok := ss.entries[fp]; ok && now.Before(entry.suppression.ExpiresAt) {
			return true
		}
	}
	return false
}

func (ss *suppressionSet) list() []*Suppression {
	now := ss.clock.Now()
	out := make([]*Suppression, 0, len(ss.entries))
	for _, entry := range ss.entries {
		if now.Before(entry.suppression.ExpiresAt) {
			c := *entry.suppression
			c.Tags = copyTags(entry.suppression.Tags)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

func (ss *suppressionSet) stopAll() {
	for _, entry := range ss.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// Validate checks the suppression rule's typed config
func (r SuppressionRule) Validate() error {
	switch r.Type {
	case SuppressionTimeBased:
		if r.Window == nil {
			return fmt.Errorf("%w: time_based suppression requires a window", ErrInvalidRule)
		}
		if _, _, err := r.Window.bounds(); err != nil {
			return err
		}
		if _, err := r.Window.location(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		for _, d := range r.Window.Days {
			if _, ok := parseWeekday(d); !ok {
				return fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, d)
			}
		}
	case SuppressionConditionBased:
		if r.Condition == nil || r.Condition.Metric == "" || !r.Condition.Operator.Valid() {
			return fmt.Errorf("%w: condition_based suppression requires metric and operator", ErrInvalidRule)
		}
	case SuppressionDependencyBased:
		if r.Dependency == nil || r.Dependency.Component == "" {
			return fmt.Errorf("%w: dependency_based suppression requires a component", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown suppression type %q", ErrInvalidRule, r.Type)
	}
	return nil
}

func (w *TimeWindowConfig) bounds() (int, int, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (w *TimeWindowConfig) location() (*time.Location, error) {
	if w.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(w.Timezone)
}

// contains reports whether t falls inside the window; windows whose end is
// before their start wrap past midnight
func (w *TimeWindowConfig) contains(t time.Time) (bool, error) {
	start, end, err := w.bounds()
	if err != nil {
		return false, err
	}
	loc, err := w.location()
	if err != nil {
		return false, err
	}
	local := t.In(loc)
	minute := local.Hour()*60 + local.Minute()

	day := local.Weekday()
	var inWindow bool
	if start <= end {
		inWindow = minute >= start && minute < end
	} else {
		inWindow = minute >= start || minute < end
		// the early-morning tail belongs to the previous day's window
		if minute < end {
			day = (day + 6) % 7
		}
	}
	if !inWindow {
		return false, nil
	}

	if len(w.Days) == 0 {
		return true, nil
	}
	for _, d := range w.Days {
		if wd, ok := parseWeekday(d); ok && wd == day {
			return true, nil
		}
	}
	return false, nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > 3 {
		s = s[:3]
	}
	wd, ok := weekdays[s]
	return wd, ok
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time of day %q", ErrInvalidRule, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// suppressionEvaluator decides whether a rule's own suppression rules mute
// a fire. Any evaluation error fails open.
type suppressionEvaluator struct {
	source          MetricSource
	window          time.Duration
	clock           Clock
	componentActive func(component, tenantID string) bool
	logger          *logrus.Logger
}

func (e *suppressionEvaluator) suppresses(ctx context.Context, rule *AlertRule) (bool, SuppressionType) {
	for _, sr := range rule.Suppressions {
		if !sr.Enabled {
			continue
		}
		muted, err := e.evaluate(ctx, rule, sr)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"rule_id":          rule.ID,
				"suppression_type": sr.Type,
			}).Warn("Suppression evaluation failed, not suppressing")
			continue
		}
		if muted {
			return true, sr.Type
		}
	}
	return false, ""
}

func (e *suppressionEvaluator) evaluate(ctx context.Context, rule *AlertRule, sr SuppressionRule) (bool, error) {
	switch sr.Type {
	case SuppressionTimeBased:
		if sr.Window == nil {
			return false, fmt.Errorf("missing window config")
		}
		return sr.Window.contains(e.clock.Now())
	case SuppressionConditionBased:
		if sr.Condition == nil {
			return false, fmt.Errorf("missing condition config")
		}
		value, err := e.source.GetLatestValue(ctx, sr.Condition.Metric, rule.TenantID, e.window)
		if err != nil {
			return false, err
		}
		if value == nil {
			return false, nil
		}
		return sr.Condition.Operator.Evaluate(*value, sr.Condition.Threshold)
	case SuppressionDependencyBased:
		if sr.Dependency == nil {
			return false, fmt.Errorf("missing dependency config")
		}
		return e.componentActive(sr.Dependency.Component, rule.TenantID), nil
	default:
		return false, fmt.Errorf("unknown suppression type %q", sr.Type)
	}
}
