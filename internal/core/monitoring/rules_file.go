package monitoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type rulesFile struct {
	Rules []*AlertRule `yaml:"rules"`
}

// LoadRulesFile reads a YAML document with a top-level "rules" list and
// validates every rule
func LoadRulesFile(path string) ([]*AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rules document. Rules without an
// id get one derived from their tenant and name.
func ParseRules(data []byte) ([]*AlertRule, error) {
	var doc rulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	seen := make(map[string]bool)
	for i, rule := range doc.Rules {
		if rule == nil {
			return nil, fmt.Errorf("%w: rule %d is empty", ErrInvalidRule, i+1)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, rule.Name, err)
		}
		if rule.ID == "" {
			rule.ID = FileRuleID(rule.TenantID, rule.Name)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("%w: duplicate rule id %q (rule %d, %s)", ErrInvalidRule, rule.ID, i+1, rule.Name)
		}
		seen[rule.ID] = true
	}
	return doc.Rules, nil
}

// FileRuleID derives a stable rule id from tenant and name
func FileRuleID(tenantID, name string) string {
	sum := sha256.Sum256([]byte(tenantID + "\x00" + name))
	return "rule-" + hex.EncodeToString(sum[:8])
}

// LoadRules syncs the manager with a rules file: every rule in it is
// upserted and rules an earlier load of the same file created, but the file
// no longer lists, are deleted. A file that fails to parse changes nothing.
func (m *AlertManager) LoadRules(ctx context.Context, path string) (int, error) {
	rules, err := LoadRulesFile(path)
	if err != nil {
		return 0, err
	}

	origin := "file:" + filepath.Clean(path)
	keep := make(map[string]bool, len(rules))
	for _, rule := range rules {
		rule.Origin = origin
		keep[rule.ID] = true
		if _, err := m.CreateRule(ctx, rule); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	var stale []string
	for id, rule := range m.rules {
		if rule.Origin == origin && !keep[id] {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		if err := m.DeleteRule(ctx, id); err != nil && !errors.Is(err, ErrRuleNotFound) {
			return 0, err
		}
	}

	m.logger.WithFields(logrus.Fields{
		"path":    path,
		"rules":   len(rules),
		"removed": len(stale),
	}).Info("Loaded alert rules file")
	return len(rules), nil
}
