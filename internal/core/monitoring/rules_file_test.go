package monitoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
rules:
  - id: api-latency
    name: API latency
    metric: api.latency_ms
    enabled: true
    tags:
      team: payments
    conditions:
      - operator: gt
        threshold: 500
        duration: 2m
        severity: high
    actions:
      - type: chat
        chat:
          channel: "#payments"
      - type: pager
        conditions:
          severities: [critical]
        pager:
          routing_key: R0UT1NG
    suppressions:
      - type: time_based
        enabled: true
        window:
          start: "02:00"
          end: "03:00"
          days: [sun]
    escalation:
      name: payments
      steps:
        - delay: 15m
          actions:
            - type: email
              email:
                to: [lead@example.com]
`

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)
	require.Len(t, rules, 1)

	rule := rules[0]
	assert.Equal(t, "api-latency", rule.ID)
	assert.True(t, rule.Enabled)
	assert.Equal(t, "payments", rule.Tags["team"])
	require.Len(t, rule.Conditions, 1)
	assert.Equal(t, OpGreaterThan, rule.Conditions[0].Operator)
	assert.Equal(t, "2m", rule.Conditions[0].Duration)
	require.Len(t, rule.Actions, 2)
	assert.Equal(t, "#payments", rule.Actions[0].Chat.Channel)
	assert.Equal(t, []AlertSeverity{SeverityCritical}, rule.Actions[1].Conditions.Severities)
	require.NotNil(t, rule.Escalation)
	assert.Equal(t, "15m", rule.Escalation.Steps[0].Delay)
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		err  error
	}{
		{
			name: "bad duration",
			doc:  "rules:\n  - name: x\n    metric: m\n    conditions:\n      - {operator: gt, threshold: 1, duration: 5 mins, severity: low}\n",
			err:  ErrInvalidDuration,
		},
		{
			name: "duplicate ids",
			doc:  "rules:\n  - {id: a, name: x, metric: m, conditions: [{operator: gt, threshold: 1, severity: low}]}\n  - {id: a, name: y, metric: m, conditions: [{operator: gt, threshold: 1, severity: low}]}\n",
			err:  ErrInvalidRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := ParseRules([]byte("rules: [[["))
	assert.Error(t, err)
}

func TestLoadRules_Upserts(t *testing.T) {
	h := newHarness(nil)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o600))

	n, err := h.manager.LoadRules(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.manager.LoadRules(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rules := h.manager.GetRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "api-latency", rules[0].ID)

	_, err = h.manager.LoadRules(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

const unnamedRules = `
rules:
  - name: Queue depth
    metric: queue.depth
    enabled: true
    conditions:
      - {operator: gt, threshold: 100, severity: medium}
  - name: Disk usage
    metric: host.disk_percent
    enabled: true
    conditions:
      - {operator: gte, threshold: 90, severity: high}
`

func TestLoadRules_DerivedIDsAreStable(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(unnamedRules), 0o600))

	for i := 0; i < 3; i++ {
		n, err := h.manager.LoadRules(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	rules := h.manager.GetRules()
	require.Len(t, rules, 2)
	assert.Equal(t, FileRuleID("", "Disk usage"), rules[0].ID)
	assert.Equal(t, FileRuleID("", "Queue depth"), rules[1].ID)
	assert.Equal(t, "file:"+filepath.Clean(path), rules[0].Origin)

	stored, err := h.store.LoadEnabledRules(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestLoadRules_RemovesDroppedRules(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(unnamedRules), 0o600))

	_, err := h.manager.LoadRules(ctx, path)
	require.NoError(t, err)

	api, err := h.manager.CreateRule(ctx, &AlertRule{
		Name:       "API errors",
		Metric:     "api.errors",
		Enabled:    true,
		Conditions: []AlertCondition{{Operator: OpGreaterThan, Threshold: 5, Severity: SeverityHigh}},
	})
	require.NoError(t, err)

	trimmed := "rules:\n  - {name: Queue depth, metric: queue.depth, enabled: true, conditions: [{operator: gt, threshold: 100, severity: medium}]}\n"
	require.NoError(t, os.WriteFile(path, []byte(trimmed), 0o600))
	n, err := h.manager.LoadRules(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var ids []string
	for _, rule := range h.manager.GetRules() {
		ids = append(ids, rule.ID)
	}
	assert.ElementsMatch(t, []string{api.ID, FileRuleID("", "Queue depth")}, ids, "rules from other sources are kept")

	stored, err := h.store.LoadEnabledRules(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestFileRuleID(t *testing.T) {
	assert.Equal(t, FileRuleID("acme", "CPU"), FileRuleID("acme", "CPU"))
	assert.NotEqual(t, FileRuleID("acme", "CPU"), FileRuleID("globex", "CPU"))
	assert.NotEqual(t, FileRuleID("a", "bc"), FileRuleID("ab", "c"))
	assert.Regexp(t, `^rule-[0-9a-f]{16}$`, FileRuleID("", "CPU"))
}

func TestParseRules_DerivedIDCollision(t *testing.T) {
	doc := "rules:\n  - {name: x, metric: m, conditions: [{operator: gt, threshold: 1, severity: low}]}\n  - {name: x, metric: n, conditions: [{operator: gt, threshold: 1, severity: low}]}\n"
	_, err := ParseRules([]byte(doc))
	assert.ErrorIs(t, err, ErrInvalidRule)
}
