package monitoring

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFoundOrInvalidState is returned when an alert id is unknown or the
	// alert is not in a state that allows the requested transition
	ErrNotFoundOrInvalidState = errors.New("alert not found or in invalid state")
	// ErrInvalidDuration is returned for durations outside <integer><s|m|h|d>
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidRule is returned when a rule, action or request fails validation
	ErrInvalidRule = errors.New("invalid alert rule")
	// ErrIncidentNotFound is returned for unknown incident ids
	ErrIncidentNotFound = errors.New("incident not found")
	// ErrRuleNotFound is returned for unknown rule ids
	ErrRuleNotFound = errors.New("alert rule not found")
)

var durationPattern = regexp.MustCompile(`^(\d+)(s|m|h|d)$`)

// ParseDuration parses the human duration grammar <integer><s|m|h|d>
func ParseDuration(s string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
	}

	var unit time.Duration
	switch match[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	if n > int64(1<<62)/int64(unit) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, s)
	}
	return time.Duration(n) * unit, nil
}

// optionalDuration treats an empty string as zero
func optionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return ParseDuration(s)
}

// Evaluate applies the operator to value and threshold with no tolerance
func (op ConditionOperator) Evaluate(value, threshold float64) (bool, error) {
	switch op {
	case OpGreaterThan:
		return value > threshold, nil
	case OpGreaterOrEqual:
		return value >= threshold, nil
	case OpLessThan:
		return value < threshold, nil
	case OpLessOrEqual:
		return value <= threshold, nil
	case OpEqual:
		return value == threshold, nil
	case OpNotEqual:
		return value != threshold, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, op)
	}
}

// Valid reports whether op is one of the supported operators
func (op ConditionOperator) Valid() bool {
	_, err := op.Evaluate(0, 0)
	return err == nil
}

// Weight orders severities: critical=4, high=3, medium=2, low=1
func (s AlertSeverity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s AlertSeverity) Valid() bool {
	return s.Weight() > 0
}

func (s AlertSource) Valid() bool {
	switch s {
	case SourcePerformance, SourceAvailability, SourceThreshold, SourceAnomaly, SourceExternal:
		return true
	}
	return false
}

// MaxSeverity returns the more severe of a and b
func MaxSeverity(a, b AlertSeverity) AlertSeverity {
	if b.Weight() > a.Weight() {
		return b
	}
	return a
}

// Fingerprint derives the deduplication key from component, metric and the
// sorted tag entries. The same key identifies alerts and suppressions.
func Fingerprint(component, metric string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	writeField(h, component)
	writeField(h, metric)
	for _, k := range keys {
		writeField(h, k)
		writeField(h, tags[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// writeField length-prefixes each value so ("ab","c") and ("a","bc") differ
func writeField(h io.Writer, s string) {
	fmt.Fprintf(h, "%d:%s;", len(s), s)
}

// componentFromMetric returns the metric prefix before the first dot
func componentFromMetric(metric string) string {
	if i := strings.Index(metric, "."); i > 0 {
		return metric[:i]
	}
	return metric
}
