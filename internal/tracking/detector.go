// Package tracking remembers which roster entries were already surfaced so each poll
// can report only the newcomers.
package tracking

import (
	"sync"
)

// State is the lifecycle of a KnownSet. A set never returns to Uninitialized.
type State int

const (
	Uninitialized State = iota
	Initialized
)

func (s State) String() string {
	if s == Initialized {
		return "initialized"
	}
	return "uninitialized"
}

// KnownSet holds the identifiers observed on the previous poll of one category.
type KnownSet struct {
	State State
	IDs   map[string]struct{}
}

// Classification is the outcome of one poll for one category. New preserves the
// order of the ids passed to Classify; All is the deduplicated current set.
type Classification struct {
	New []string
	All []string
}

// Detector owns one KnownSet per roster category.
type Detector struct {
	mu   sync.Mutex
	sets map[string]*KnownSet
}

// NewDetector constructs an empty Detector. All sets start Uninitialized.
func NewDetector() *Detector {
	return &Detector{sets: make(map[string]*KnownSet)}
}

// Classify compares ids against the previous poll of category. On the first call
// for a category nothing is new unless force is set. Afterwards, new means present
// now and absent last time. The stored set is then replaced by ids, so an id that
// disappears and comes back is reported again.
func (d *Detector) Classify(category string, ids []string, force bool) Classification {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.sets[category]
	if !ok {
		set = &KnownSet{State: Uninitialized}
		d.sets[category] = set
	}

	current := make(map[string]struct{}, len(ids))
	result := Classification{All: make([]string, 0, len(ids))}
	for _, id := range ids {
		if _, dup := current[id]; dup {
			continue
		}
		current[id] = struct{}{}
		result.All = append(result.All, id)

		switch {
		case set.State == Uninitialized:
			if force {
				result.New = append(result.New, id)
			}
		default:
			if _, seen := set.IDs[id]; !seen {
				result.New = append(result.New, id)
			}
		}
	}

	set.IDs = current
	set.State = Initialized
	return result
}

// State reports the lifecycle state of category's KnownSet.
func (d *Detector) State(category string) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.sets[category]; ok {
		return set.State
	}
	return Uninitialized
}

// Known returns how many ids category's KnownSet currently holds.
func (d *Detector) Known(category string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.sets[category]; ok {
		return len(set.IDs)
	}
	return 0
}
