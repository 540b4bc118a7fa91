// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package policy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/gobwas/glob"

	"github.com/toeirei/keygate/internal/logging"
)

// Effects a rule can have.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// Decision reasons.
const (
	ReasonAllow   = "POLICY_ALLOW"
	ReasonDeny    = "POLICY_DENY"
	ReasonNoMatch = "POLICY_NO_MATCH"
)

// Rule matches queries by glob patterns. An empty pattern list matches
// anything. Patterns have no separators: "*" spans every character,
// including "/".
type Rule struct {
	ID           string   `yaml:"id,omitempty"`
	Effect       string   `yaml:"effect"`
	Actions      []string `yaml:"actions,omitempty"`
	ResourceType string   `yaml:"resource_type,omitempty"`
	Resources    []string `yaml:"resources,omitempty"`
	Accounts     []string `yaml:"accounts,omitempty"`
	Users        []string `yaml:"users,omitempty"`

	compiled *compiledRule
}

type compiledRule struct {
	actions, resources, accounts, users []glob.Glob
}

// Decision is the outcome of evaluating a RuleSet.
type Decision struct {
	Allowed bool
	Reason  string
	RuleID  string
}

// RuleSet is a list of rules. Deny rules take precedence over allow rules
// and a query matched by no rule is denied.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

var _ Engine = (*RuleSet)(nil)

// LoadFile reads a YAML rule set from path.
func LoadFile(p string) (*RuleSet, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule set.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		r.Effect = strings.ToLower(strings.TrimSpace(r.Effect))
		if r.Effect != EffectAllow && r.Effect != EffectDeny {
			return nil, fmt.Errorf("rule %d: unknown effect %q", i, r.Effect)
		}
		if r.ID == "" {
			r.ID = fmt.Sprintf("rule-%d", i)
		}
		c, err := r.compile()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		r.compiled = c
	}
	return &rs, nil
}

// Evaluate applies the rules to q.
func (rs *RuleSet) Evaluate(q Query) Decision {
	if rs == nil {
		return Decision{Reason: ReasonNoMatch}
	}
	var allow *Rule
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if !r.matches(q) {
			continue
		}
		if r.Effect == EffectDeny {
			return Decision{Reason: ReasonDeny, RuleID: r.ID}
		}
		if allow == nil {
			allow = r
		}
	}
	if allow != nil {
		return Decision{Allowed: true, Reason: ReasonAllow, RuleID: allow.ID}
	}
	return Decision{Reason: ReasonNoMatch}
}

// IsAuthorized implements Engine.
func (rs *RuleSet) IsAuthorized(_ context.Context, q Query) (bool, error) {
	d := rs.Evaluate(q)
	logging.L.Debug("policy decision", "action", q.Action, "resource", q.ResourceName, "user", q.User, "reason", d.Reason, "rule", d.RuleID)
	return d.Allowed, nil
}

func (r *Rule) matches(q Query) bool {
	if r.ResourceType != "" && !strings.EqualFold(r.ResourceType, q.ResourceType) {
		return false
	}
	c := r.compiled
	if c == nil {
		// Rules built in code rather than by Parse are compiled per call.
		var err error
		if c, err = r.compile(); err != nil {
			return false
		}
	}
	return matchAny(c.actions, strings.ToLower(q.Action)) &&
		matchAny(c.resources, q.ResourceName) &&
		matchAny(c.accounts, q.Account) &&
		matchAny(c.users, q.User)
}

func (r *Rule) compile() (*compiledRule, error) {
	var c compiledRule
	var err error
	if c.actions, err = compilePatterns(r.Actions, true); err != nil {
		return nil, err
	}
	if c.resources, err = compilePatterns(r.Resources, false); err != nil {
		return nil, err
	}
	if c.accounts, err = compilePatterns(r.Accounts, false); err != nil {
		return nil, err
	}
	if c.users, err = compilePatterns(r.Users, false); err != nil {
		return nil, err
	}
	return &c, nil
}

func compilePatterns(patterns []string, fold bool) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if fold {
			p = strings.ToLower(p)
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, value string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if g.Match(value) {
			return true
		}
	}
	return false
}
