// Package rules selects the ride-service policy that applies to a hire's location.
package rules

import "strings"

// Rule is one provisioning policy on the ride-service platform. Names follow the
// "<location>-<category>" convention when they were created by an administrator.
type Rule struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Active   bool   `json:"active" yaml:"active"`
	Default  bool   `json:"default" yaml:"default"`
}

// Matcher picks the best rule for a location label. Primary and secondary name the
// rule categories that are preferred over everything else, in that order.
type Matcher struct {
	primary   string
	secondary string
}

// NewMatcher constructs a Matcher.
func NewMatcher(primaryCategory, secondaryCategory string) *Matcher {
	return &Matcher{primary: primaryCategory, secondary: secondaryCategory}
}

// Match returns the rule that best fits label, or nil if no active rule exists.
// Search order:
//  1. name starts with label in the primary category; the canonical
//     "label-primary" name wins, otherwise the shortest name
//  2. name contains label in the secondary category
//  3. name contains label in any category
//  4. the default rule, else the first active rule
func (m *Matcher) Match(label string, candidates []Rule) *Rule {
	active := make([]Rule, 0, len(candidates))
	for _, r := range candidates {
		if r.Active {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return fallback(active)
	}

	if r := m.primaryMatch(label, active); r != nil {
		return r
	}
	for _, r := range active {
		if r.Category == m.secondary && strings.Contains(r.Name, label) {
			return &r
		}
	}
	for _, r := range active {
		if strings.Contains(r.Name, label) {
			return &r
		}
	}
	return fallback(active)
}

func (m *Matcher) primaryMatch(label string, active []Rule) *Rule {
	canonical := label + "-" + m.primary
	var best *Rule
	for i := range active {
		r := active[i]
		if r.Category != m.primary || !strings.HasPrefix(r.Name, label) {
			continue
		}
		if r.Name == canonical {
			return &r
		}
		if best == nil || len(r.Name) < len(best.Name) {
			best = &r
		}
	}
	return best
}

func fallback(active []Rule) *Rule {
	for _, r := range active {
		if r.Default {
			return &r
		}
	}
	r := active[0]
	return &r
}
