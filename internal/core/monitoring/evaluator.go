package monitoring

import (
	"fmt"
	"strconv"
	"time"
)

type pendingKey struct {
	ruleID    string
	condition int
}

// ruleEvaluator turns one metric sample into fire requests. It remembers
// when each duration-gated condition first became true; the manager lock
// guards it.
type ruleEvaluator struct {
	pending map[pendingKey]time.Time
}

func newRuleEvaluator() *ruleEvaluator {
	return &ruleEvaluator{pending: make(map[pendingKey]time.Time)}
}

// observe evaluates every condition of rule against value. A nil value
// clears any pending windows of the rule and fires nothing.
func (e *ruleEvaluator) observe(rule *AlertRule, value *float64, now time.Time) []FireRequest {
	if value == nil {
		e.forget(rule.ID)
		return nil
	}

	var fires []FireRequest
	for i, cond := range rule.Conditions {
		key := pendingKey{ruleID: rule.ID, condition: i}

		holds, err := cond.Operator.Evaluate(*value, cond.Threshold)
		if err != nil || !holds {
			delete(e.pending, key)
			continue
		}

		hold, err := optionalDuration(cond.Duration)
		if err != nil {
			delete(e.pending, key)
			continue
		}
		if hold > 0 {
			since, ok := e.pending[key]
			if !ok {
				e.pending[key] = now
				continue
			}
			if now.Sub(since) < hold {
				continue
			}
		}

		fires = append(fires, buildFire(rule, cond, *value))
	}
	return fires
}

// forget drops the pending windows of a rule
func (e *ruleEvaluator) forget(ruleID string) {
	for key := range e.pending {
		if key.ruleID == ruleID {
			delete(e.pending, key)
		}
	}
}

func buildFire(rule *AlertRule, cond AlertCondition, value float64) FireRequest {
	component := rule.Tags["component"]
	if component == "" {
		component = componentFromMetric(rule.Metric)
	}

	v := value
	threshold := cond.Threshold
	return FireRequest{
		Source:       SourceThreshold,
		Component:    component,
		Title:        rule.Name,
		Message:      fmt.Sprintf("%s=%s %s %s", rule.Metric, formatValue(value), cond.Operator, formatValue(cond.Threshold)),
		Severity:     cond.Severity,
		Metric:       rule.Metric,
		CurrentValue: &v,
		Threshold:    &threshold,
		Tags:         copyTags(rule.Tags),
		TenantID:     rule.TenantID,
		RuleID:       rule.ID,
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Validate checks a rule before it is stored
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if r.Metric == "" {
		return fmt.Errorf("%w: metric is required", ErrInvalidRule)
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("%w: at least one condition is required", ErrInvalidRule)
	}
	for i, c := range r.Conditions {
		if !c.Operator.Valid() {
			return fmt.Errorf("%w: condition %d: unknown operator %q", ErrInvalidRule, i+1, c.Operator)
		}
		if !c.Severity.Valid() {
			return fmt.Errorf("%w: condition %d: unknown severity %q", ErrInvalidRule, i+1, c.Severity)
		}
		if _, err := optionalDuration(c.Duration); err != nil {
			return fmt.Errorf("condition %d: %w", i+1, err)
		}
	}
	for _, a := range r.Actions {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	for _, s := range r.Suppressions {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if r.Escalation != nil {
		if err := r.Escalation.Validate(); err != nil {
			return err
		}
	}
	return nil
}
