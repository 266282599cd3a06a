package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"onboard/pkg/platform/sentinel"
)

var (
	// ErrEmptyName is returned when a display name has no characters usable in a handle.
	ErrEmptyName = errors.New("name yields an empty handle")
	// ErrAllSuffixesExhausted is returned when the base handle and every suffixed
	// candidate are taken. It is fatal for the record, not for a batch.
	ErrAllSuffixesExhausted = errors.New("all handle suffixes exhausted")
)

// TakenFunc reports whether a candidate handle is already in use.
type TakenFunc func(ctx context.Context, candidate string) (bool, error)

// CommitFunc attempts to claim a candidate permanently. It returns an error wrapping
// sentinel.ErrDuplicateConflict when the handle is reserved by a record the probe
// cannot see (for example a retired account).
type CommitFunc func(ctx context.Context, candidate string) error

// Allocator turns display names into unique handles. It holds no state between
// calls: the same name and the same TakenFunc always produce the same handle.
type Allocator struct {
	logger *slog.Logger
}

type Option func(a *Allocator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// New constructs an Allocator.
func New(opts ...Option) *Allocator {
	a := &Allocator{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Candidates returns the retry order for a name: the base handle followed by the
// base with each suffix of the sequence appended.
func Candidates(name string) ([]string, error) {
	base := Slug(name)
	if base == "" {
		return nil, ErrEmptyName
	}
	out := make([]string, 0, len(suffixSequence)+1)
	out = append(out, base)
	for _, n := range suffixSequence {
		out = append(out, base+strconv.Itoa(n))
	}
	return out, nil
}

// Allocate returns the first candidate for name that isTaken reports as free.
// A nil isTaken treats every candidate as free.
func (a *Allocator) Allocate(ctx context.Context, name string, isTaken TakenFunc) (string, error) {
	candidates, err := Candidates(name)
	if err != nil {
		return "", err
	}
	idx, err := firstFree(ctx, candidates, 0, isTaken)
	if err != nil {
		return "", err
	}
	return candidates[idx], nil
}

// Claim runs the two-phase allocation used for live provisioning. The probe picks
// the first candidate that is not held by an active account; commit then tries to
// claim it. A duplicate conflict moves on to the next candidate the probe reports
// free. Any other commit error is returned unchanged.
func (a *Allocator) Claim(ctx context.Context, name string, probe TakenFunc, commit CommitFunc) (string, error) {
	candidates, err := Candidates(name)
	if err != nil {
		return "", err
	}

	from := 0
	for {
		idx, err := firstFree(ctx, candidates, from, probe)
		if err != nil {
			return "", err
		}

		err = commit(ctx, candidates[idx])
		if err == nil {
			return candidates[idx], nil
		}
		if !errors.Is(err, sentinel.ErrDuplicateConflict) {
			return "", err
		}

		if a.logger != nil {
			a.logger.DebugContext(ctx, "handle reserved by inactive record, advancing",
				"candidate", candidates[idx],
				"attempt", idx+1,
			)
		}
		from = idx + 1
	}
}

// Assignment is one result of AllocateBatch.
type Assignment struct {
	Name   string
	Handle string
	Err    error
}

// AllocateBatch assigns handles to several names in one pass. Besides isTaken
// (which may be nil), a candidate already handed to an earlier name in the same
// call counts as taken, so two people sharing a base handle get distinct results.
// A failing name is reported in its Assignment and does not stop the others.
func (a *Allocator) AllocateBatch(ctx context.Context, names []string, isTaken TakenFunc) []Assignment {
	assigned := make(map[string]struct{}, len(names))
	guard := func(ctx context.Context, candidate string) (bool, error) {
		if _, ok := assigned[candidate]; ok {
			return true, nil
		}
		if isTaken == nil {
			return false, nil
		}
		return isTaken(ctx, candidate)
	}

	out := make([]Assignment, 0, len(names))
	for _, name := range names {
		handle, err := a.Allocate(ctx, name, guard)
		if err == nil {
			assigned[handle] = struct{}{}
		}
		out = append(out, Assignment{Name: name, Handle: handle, Err: err})
	}
	return out
}

func firstFree(ctx context.Context, candidates []string, from int, isTaken TakenFunc) (int, error) {
	for i := from; i < len(candidates); i++ {
		if isTaken == nil {
			return i, nil
		}
		taken, err := isTaken(ctx, candidates[i])
		if err != nil {
			return -1, fmt.Errorf("probe %s: %w", candidates[i], err)
		}
		if !taken {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrAllSuffixesExhausted, candidates[0])
}
