package monitoring

import (
	"fmt"
)

// escalationKey identifies one armed step of one alert
type escalationKey struct {
	alertID string
	step    int
}

// escalationScheduler is the registry of pending escalation timers. It is
// not safe for concurrent use; the AlertManager lock guards it.
type escalationScheduler struct {
	clock  Clock
	timers map[escalationKey]Timer
}

func newEscalationScheduler(clock Clock) *escalationScheduler {
	return &escalationScheduler{
		clock:  clock,
		timers: make(map[escalationKey]Timer),
	}
}

// start arms one timer per step. Step numbers are 1-based. fire runs on the
// timer goroutine and must take the manager lock itself.
func (s *escalationScheduler) start(alertID string, policy *EscalationPolicy, fire func(key escalationKey, step EscalationStep)) int {
	if policy == nil {
		return 0
	}

	armed := 0
	for i, step := range policy.Steps {
		delay, err := optionalDuration(step.Delay)
		if err != nil {
			// policies are validated on rule creation
			continue
		}
		key := escalationKey{alertID: alertID, step: i + 1}
		if prev, ok := s.timers[key]; ok {
			prev.Stop()
		}
		step := step
		s.timers[key] = s.clock.AfterFunc(delay, func() { fire(key, step) })
		armed++
	}
	return armed
}

// take unregisters key and reports whether it was still pending. A timer
// whose key was already cancelled must not act.
func (s *escalationScheduler) take(key escalationKey) bool {
	if _, ok := s.timers[key]; !ok {
		return false
	}
	delete(s.timers, key)
	return true
}

// stop cancels every pending step of the alert. Safe to call repeatedly.
func (s *escalationScheduler) stop(alertID string) int {
	cancelled := 0
	for key, timer := range s.timers {
		if key.alertID != alertID {
			continue
		}
		timer.Stop()
		delete(s.timers, key)
		cancelled++
	}
	return cancelled
}

func (s *escalationScheduler) pending(alertID string) int {
	n := 0
	for key := range s.timers {
		if key.alertID == alertID {
			n++
		}
	}
	return n
}

func (s *escalationScheduler) stopAll() {
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

// Validate checks every step's delay and actions
func (p *EscalationPolicy) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: escalation policy has no steps", ErrInvalidRule)
	}
	for i, step := range p.Steps {
		if _, err := optionalDuration(step.Delay); err != nil {
			return fmt.Errorf("escalation step %d: %w", i+1, err)
		}
		if len(step.Actions) == 0 {
			return fmt.Errorf("%w: escalation step %d has no actions", ErrInvalidRule, i+1)
		}
		for _, action := range step.Actions {
			if err := action.Validate(); err != nil {
				return fmt.Errorf("escalation step %d: %w", i+1, err)
			}
		}
	}
	return nil
}
