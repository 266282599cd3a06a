package callback

import (
	"context"
	"errors"

	"onboard/internal/identity"
	"onboard/internal/notify/action"
	"onboard/internal/provisioning"
	"onboard/pkg/platform/sentinel"
)

var (
	ErrMalformedAction = action.ErrMalformed
	ErrUnknownAction   = action.ErrUnknownKind

	// ErrNothingToRefresh is returned by a Refresher when the card's hires are
	// all done, or the card and its group are unknown.
	ErrNothingToRefresh = errors.New("nothing left to refresh")
)

// humanize turns a provisioning error into the short reason shown to operators.
func humanize(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, identity.ErrAllSuffixesExhausted):
		return "no free email handle left for this name"
	case errors.Is(err, identity.ErrEmptyName):
		return "name yields no usable email handle"
	case errors.Is(err, provisioning.ErrInvalidHandle):
		return "invalid email handle"
	case errors.Is(err, sentinel.ErrDuplicateConflict):
		return "handle is already taken"
	case errors.Is(err, sentinel.ErrAuthExpired):
		return "service credentials were rejected"
	case errors.Is(err, sentinel.ErrUnavailable):
		return "service temporarily unavailable, try again later"
	case errors.Is(err, sentinel.ErrNotFound):
		return "record no longer exists upstream"
	case errors.Is(err, sentinel.ErrInvalidState):
		return "record is not in a state that allows this"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return "unexpected error"
	}
}
