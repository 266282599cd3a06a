// Package throttle spaces calls to rate-sensitive upstreams.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate admits one caller per interval. Callers block in Wait until their slot.
type Gate struct {
	limiter *rate.Limiter
}

// New returns a Gate allowing one call every interval. A non-positive interval
// disables throttling.
func New(interval time.Duration) *Gate {
	if interval <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the caller may proceed or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
