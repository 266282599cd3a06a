package models

import (
	"time"

	"onboard/internal/rules"
)

// Category partitions the roster; each category is polled and tracked separately.
type Category string

const (
	CategoryIntern  Category = "intern"
	CategoryRegular Category = "regular"
)

// Status is the roster-side lifecycle of a hire.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Record is one incoming hire as reported by the roster source. The core treats
// it as an immutable snapshot of a single poll.
type Record struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Location   string    `json:"location"`
	Category   Category  `json:"category"`
	Status     Status    `json:"status"`
	TargetDate time.Time `json:"target_date"`
	HasEmail   bool      `json:"has_email"`
}

// IsPending reports whether the hire still awaits onboarding.
func (r Record) IsPending() bool {
	return r.Status == StatusPending
}

// Enriched is a Record with the data the renderer needs: the location label used
// for grouping and rule matching, the matched ride rule (nil when none applies)
// and the handle the allocator would propose without live checks.
type Enriched struct {
	Record
	Label          string
	Rule           *rules.Rule
	ProposedHandle string
}

// GroupKey is the grouping key for cadence and notification batching.
func (e Enriched) GroupKey() string {
	if e.Label != "" {
		return e.Label
	}
	return e.Location
}
