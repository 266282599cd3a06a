package render

import (
	"time"

	"onboard/internal/notify/card"
)

// Tier ranks how soon a hire's target date is. Lower is more urgent.
type Tier int

const (
	TierUrgent   Tier = iota // today or already past
	TierTomorrow             // exactly one day ahead
	TierThisWeek             // two to seven days ahead
	TierLater                // more than a week ahead
)

// Tiers lists every tier from most to least urgent.
var Tiers = []Tier{TierUrgent, TierTomorrow, TierThisWeek, TierLater}

func (t Tier) Label() string {
	switch t {
	case TierUrgent:
		return "Due today or overdue"
	case TierTomorrow:
		return "Tomorrow"
	case TierThisWeek:
		return "Within a week"
	default:
		return "Later"
	}
}

func (t Tier) color() string {
	switch t {
	case TierUrgent:
		return card.ColorRed
	case TierTomorrow:
		return card.ColorOrange
	default:
		return card.ColorBlue
	}
}

// TierFor compares calendar dates in loc, so a target at 23:00 yesterday and one
// at 01:00 today are both TierUrgent.
func TierFor(target, now time.Time, loc *time.Location) Tier {
	days := DaysBetween(now, target, loc)
	switch {
	case days <= 0:
		return TierUrgent
	case days == 1:
		return TierTomorrow
	case days <= 7:
		return TierThisWeek
	default:
		return TierLater
	}
}

// DaysBetween returns the number of calendar days from from to to in loc.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	a := dateOf(from, loc)
	b := dateOf(to, loc)
	return int(b.Sub(a).Hours() / 24)
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
