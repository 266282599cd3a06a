// Package cadence decides, per grouping key, whether a notification push is due.
package cadence

import (
	"fmt"
	"time"
)

// Mode selects how a group's pushes are timed.
type Mode string

const (
	// ModeRealtime pushes whenever the group has new records.
	ModeRealtime Mode = "realtime"
	// ModeScheduled pushes on fixed weekdays regardless of new records.
	ModeScheduled Mode = "scheduled"
)

// Rule is the cadence of one grouping key. Days uses ISO numbering
// (1 = Monday ... 7 = Sunday) and only matters for ModeScheduled.
type Rule struct {
	Mode Mode  `json:"mode" yaml:"mode"`
	Days []int `json:"days,omitempty" yaml:"days,omitempty"`
}

// Validate checks that the rule is usable.
func (r Rule) Validate() error {
	switch r.Mode {
	case ModeRealtime:
		return nil
	case ModeScheduled:
		if len(r.Days) == 0 {
			return fmt.Errorf("scheduled rule needs at least one day")
		}
		for _, d := range r.Days {
			if d < 1 || d > 7 {
				return fmt.Errorf("day %d out of range 1..7", d)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown cadence mode %q", r.Mode)
	}
}

// Policy maps grouping keys to rules. Unlisted keys use Default. Weekdays are
// evaluated in Location.
type Policy struct {
	rules    map[string]Rule
	fallback Rule
	loc      *time.Location
}

// NewPolicy constructs a Policy. A nil loc means UTC.
func NewPolicy(rules map[string]Rule, fallback Rule, loc *time.Location) (*Policy, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := fallback.Validate(); err != nil {
		return nil, fmt.Errorf("default rule: %w", err)
	}
	copied := make(map[string]Rule, len(rules))
	for key, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %q: %w", key, err)
		}
		copied[key] = r
	}
	return &Policy{rules: copied, fallback: fallback, loc: loc}, nil
}

// RuleFor returns the rule applied to group.
func (p *Policy) RuleFor(group string) Rule {
	if r, ok := p.rules[group]; ok {
		return r
	}
	return p.fallback
}

// Location returns the reference time zone.
func (p *Policy) Location() *time.Location {
	return p.loc
}

// IsDue reports whether group should be pushed at now. Realtime groups are due
// iff hasNew; scheduled groups are due iff now falls on one of their weekdays in
// the reference time zone. Operator-forced checks skip this call entirely.
func (p *Policy) IsDue(group string, hasNew bool, now time.Time) bool {
	r := p.RuleFor(group)
	if r.Mode == ModeRealtime {
		return hasNew
	}
	today := ISOWeekday(now.In(p.loc))
	for _, d := range r.Days {
		if d == today {
			return true
		}
	}
	return false
}

// ISOWeekday maps time.Weekday to 1 (Monday) .. 7 (Sunday).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
