package upstream

import (
	"fmt"
	"net/http"

	"onboard/pkg/platform/sentinel"
)

// Error is a non-2xx response from an upstream service. It unwraps to the
// sentinel matching its status class so callers can use errors.Is, and keeps
// the raw body for adapters that need the vendor's own error code.
type Error struct {
	Service string
	Status  int
	Body    []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: upstream returned HTTP %d", e.Service, e.Status)
}

func (e *Error) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return sentinel.ErrAuthExpired
	case e.Status == http.StatusTooManyRequests || e.Status >= 500:
		return sentinel.ErrUnavailable
	case e.Status == http.StatusNotFound:
		return sentinel.ErrNotFound
	case e.Status == http.StatusConflict:
		return sentinel.ErrDuplicateConflict
	default:
		return nil
	}
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
