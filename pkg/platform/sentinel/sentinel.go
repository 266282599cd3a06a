package sentinel

import "errors"

// Sentinel errors for upstream facts. Adapters translate vendor status codes into
// these (optionally wrapped) so the core never branches on vendor-specific numbers.
//
// - ErrNotFound: entity does not exist upstream
// - ErrDuplicateConflict: identity already claimed, possibly by a retired record
// - ErrAlreadyExists: the action was already applied; callers treat it as success
// - ErrUnavailable: rate limited or server-side failure, worth retrying
// - ErrAuthExpired: access token rejected; refresh credentials and retry
// - ErrInvalidState: entity in wrong state for requested operation
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateConflict = errors.New("duplicate conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnavailable       = errors.New("unavailable")
	ErrAuthExpired       = errors.New("auth expired")
	ErrInvalidState      = errors.New("invalid state")
)

// IsTransient reports whether err belongs to the retryable upstream class.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrAuthExpired)
}
