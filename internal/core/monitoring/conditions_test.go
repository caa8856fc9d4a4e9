package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"0s", 0, false},
		{" 10m ", 10 * time.Minute, false},
		{"", 0, true},
		{"5", 0, true},
		{"1w", 0, true},
		{"1.5h", 0, true},
		{"-1m", 0, true},
		{"1h30m", 0, true},
		{"99999999999999999999d", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestConditionOperator_Evaluate(t *testing.T) {
	tests := []struct {
		op       ConditionOperator
		value    float64
		expected bool
	}{
		{OpGreaterThan, 10, true},
		{OpGreaterThan, 5, false},
		{OpGreaterOrEqual, 5, true},
		{OpLessThan, 4.99, true},
		{OpLessThan, 5, false},
		{OpLessOrEqual, 5, true},
		{OpEqual, 5, true},
		{OpEqual, 5.0000001, false},
		{OpNotEqual, 5.0000001, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got, err := tt.op.Evaluate(tt.value, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ConditionOperator("between").Evaluate(1, 2)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.False(t, ConditionOperator("between").Valid())
}

func TestSeverityWeight(t *testing.T) {
	assert.Equal(t, 4, SeverityCritical.Weight())
	assert.Equal(t, 3, SeverityHigh.Weight())
	assert.Equal(t, 2, SeverityMedium.Weight())
	assert.Equal(t, 1, SeverityLow.Weight())
	assert.Equal(t, 0, AlertSeverity("info").Weight())
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityLow, SeverityCritical))
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityHigh, SeverityMedium))
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint("api", "latency", map[string]string{"region": "eu", "az": "1"})

	assert.Len(t, base, 32)
	assert.Equal(t, base, Fingerprint("api", "latency", map[string]string{"az": "1", "region": "eu"}), "tag order is irrelevant")
	assert.Equal(t, Fingerprint("api", "latency", nil), Fingerprint("api", "latency", map[string]string{}))

	assert.NotEqual(t, base, Fingerprint("api", "latency", map[string]string{"region": "us", "az": "1"}))
	assert.NotEqual(t, Fingerprint("ab", "c", nil), Fingerprint("a", "bc", nil))
	assert.NotEqual(t, Fingerprint("api", "", nil), Fingerprint("api", "latency", nil))
}

func TestComponentFromMetric(t *testing.T) {
	assert.Equal(t, "api", componentFromMetric("api.latency.p99"))
	assert.Equal(t, "cpu", componentFromMetric("cpu"))
	assert.Equal(t, ".hidden", componentFromMetric(".hidden"))
}

func TestAlertAction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		action  AlertAction
		wantErr bool
	}{
		{"chat", chatAction("#ops"), false},
		{"email", AlertAction{Type: ActionEmail, Email: &EmailAction{To: []string{"ops@example.com"}}}, false},
		{"pager", AlertAction{Type: ActionPager, Pager: &PagerAction{RoutingKey: "abc"}}, false},
		{"mismatched config", AlertAction{Type: ActionEmail, Chat: &ChatAction{Channel: "#ops"}}, true},
		{"two configs", AlertAction{Type: ActionChat, Chat: &ChatAction{Channel: "#ops"}, SMS: &SMSAction{To: []string{"+1"}}}, true},
		{"no config", AlertAction{Type: ActionWebhook}, true},
		{"empty url", AlertAction{Type: ActionWebhook, Webhook: &WebhookAction{}}, true},
		{"bad severity filter", chatAction("#ops", "urgent"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAlertAction_Matches(t *testing.T) {
	all := chatAction("#ops")
	assert.True(t, all.Matches(SeverityLow))

	critical := chatAction("#ops", SeverityCritical, SeverityHigh)
	assert.True(t, critical.Matches(SeverityHigh))
	assert.False(t, critical.Matches(SeverityMedium))
}
